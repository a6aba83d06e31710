package env

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	emailPattern     = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	ipPattern        = regexp.MustCompile(`^((25[0-5]|2[0-4][0-9]|1[0-9][0-9]|[1-9]?[0-9])\.){3}(25[0-5]|2[0-4][0-9]|1[0-9][0-9]|[1-9]?[0-9])$`)
	portPattern      = regexp.MustCompile(`^(102[4-9]|10[3-9][0-9]|1[1-9][0-9]{2}|[2-9][0-9]{3}|[1-5][0-9]{4}|6[0-4][0-9]{3}|65[0-4][0-9]{2}|655[0-2][0-9]|6553[0-5])$`)
	anyPortPattern   = regexp.MustCompile(`^([1-9][0-9]{0,3}|[1-5][0-9]{4}|6[0-4][0-9]{3}|65[0-4][0-9]{2}|655[0-2][0-9]|6553[0-5])$`)
	domainPattern    = regexp.MustCompile(`^([a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}$`)
	hostnamePattern  = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`)
	queueNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,31}$`)
)

func IsEmpty(value string) bool {
	return strings.TrimSpace(value) == ""
}

func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

func IsValidIPAddress(ipAddress string) bool {
	if ipAddress == "localhost" {
		return true
	}
	return ipPattern.MatchString(ipAddress)
}

// IsValidPort accepts unprivileged ports only (1024-65535).
func IsValidPort(port string) bool {
	return portPattern.MatchString(port)
}

func IsValidURL(rawURL string) bool {
	if rawURL == "" {
		return false
	}
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return false
	}
	withoutProtocol := strings.TrimPrefix(strings.TrimPrefix(rawURL, "http://"), "https://")
	hostPort := strings.SplitN(withoutProtocol, "/", 2)[0]
	parts := strings.Split(hostPort, ":")

	switch len(parts) {
	case 1:
		return isValidHost(parts[0])
	case 2:
		return isValidHost(parts[0]) && IsValidPort(parts[1])
	default:
		return false
	}
}

// IsValidRedisURL checks a redis:// or rediss:// connection string as accepted by go-redis ParseURL.
func IsValidRedisURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return false
	}
	host := u.Hostname()
	if host == "" {
		return false
	}
	if !isValidHost(host) && !hostnamePattern.MatchString(host) {
		return false
	}
	if p := u.Port(); p != "" && !anyPortPattern.MatchString(p) {
		return false
	}
	if db := strings.TrimPrefix(u.Path, "/"); db != "" {
		for _, c := range db {
			if c < '0' || c > '9' {
				return false
			}
		}
	}
	return true
}

// IsValidQueueName matches lowercase identifiers used as queue key segments.
func IsValidQueueName(name string) bool {
	return queueNamePattern.MatchString(name)
}

func isValidHost(host string) bool {
	return IsValidIPAddress(host) || domainPattern.MatchString(host)
}
