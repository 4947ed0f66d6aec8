package eventbus

const (
	TopicNavReports       = "nav_reports"
	TopicObstacleAlerts   = "obstacle_alerts"
	TopicObstacleResolved = "obstacle_resolved"
	TopicHelmMail         = "helm_mail"
	TopicHelmPosts        = "helm_posts"
	TopicHelmFunctions    = "helm_functions"
	TopicHelmWarnings     = "helm_warnings"
	TopicEncounters       = "encounters"
)

const (
	TypeNavReport        = "nav.report"
	TypeObstacleAlert    = "obstacle.alert"
	TypeObstacleResolved = "obstacle.resolved"
	TypeHelmMail         = "helm.mail"
	TypeHelmPost         = "helm.post"
	TypeHelmFunction     = "helm.function"
	TypeHelmWarning      = "helm.warning"
	TypeEncounter        = "encounter."
)

// InboundTopics are the topics the helm reads mail from.
var InboundTopics = []string{TopicNavReports, TopicObstacleAlerts, TopicObstacleResolved, TopicHelmMail}

// OutboundTopics are the topics the helm writes to.
var OutboundTopics = []string{TopicHelmPosts, TopicHelmFunctions, TopicHelmWarnings, TopicEncounters}
