package broker

import (
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/types"
)

// Keys builds broker key names under a common prefix:
//
//	{prefix}:queue:{queue}            pending list
//	{prefix}:registry:{queue}:{reg}   scored registry
//	{prefix}:job:{id}                 job record
//	{prefix}:worker:{name}            worker heartbeat
//	{prefix}:lock:{name}              lock
type Keys struct {
	prefix string
}

func NewKeys(prefix string) Keys {
	if prefix == "" {
		prefix = "jobqueue"
	}
	return Keys{prefix: prefix + ":"}
}

func (k Keys) Queue(p types.Priority) string { return k.prefix + "queue:" + string(p) }

func (k Keys) Registry(p types.Priority, reg Registry) string {
	return k.prefix + "registry:" + string(p) + ":" + string(reg)
}

func (k Keys) Job(id string) string { return k.prefix + "job:" + id }

func (k Keys) Worker(name string) string { return k.prefix + "worker:" + name }

func (k Keys) WorkerPattern() string { return k.prefix + "worker:*" }

func (k Keys) Lock(name string) string { return k.prefix + "lock:" + name }
