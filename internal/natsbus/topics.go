package natsbus

import "fmt"

// Topic patterns for NATS pub/sub communication.

func TopicEventsAgent(agentID int) string {
	return fmt.Sprintf("events.agent.%d", agentID)
}

const (
	TopicEventsAgents = "events.agent.*"
)
