package audit

// Kafka topics for audit event routing. The outbox relay publishes each event
// to the topic matching its category; consumers materialize per-topic tables
// with their own retention.
const (
	TopicCompliance = "geoseal.audit.compliance"
	TopicSecurity   = "geoseal.audit.security"
	TopicOps        = "geoseal.audit.ops"
)

// TopicForCategory returns the Kafka topic for an event category.
func TopicForCategory(c EventCategory) string {
	switch c {
	case CategoryCompliance:
		return TopicCompliance
	case CategorySecurity:
		return TopicSecurity
	default:
		return TopicOps
	}
}

// AllTopics lists every audit topic, in the order they should be created.
func AllTopics() []string {
	return []string{TopicCompliance, TopicSecurity, TopicOps}
}
