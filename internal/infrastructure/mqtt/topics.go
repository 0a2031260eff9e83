package mqtt

import "strings"

// Topic prefixes for the MFA service.
const (
	// TopicPrefixMFA is the base for every topic this service publishes.
	TopicPrefixMFA = "graylogic/mfa"

	// TopicPrefixOATH is the base for OATH device events.
	// Layout: graylogic/mfa/oath/{realm}/{user}/{event}
	TopicPrefixOATH = TopicPrefixMFA + "/oath"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = TopicPrefixMFA + "/system"
)

// rootRealmLevel is the topic level used for the root realm "/".
const rootRealmLevel = "root"

// Topics provides builders for MFA MQTT topics.
//
//	topic := mqtt.Topics{}.OathEvent("/customers", "u-123", "device_removed")
//	// Returns: "graylogic/mfa/oath/customers/u-123/device_removed"
type Topics struct{}

// SystemStatus returns the retained service status topic.
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// OathEvent returns the topic for an OATH device event.
// Nested realms are flattened into one level joined by ".".
func (Topics) OathEvent(realmPath, userID, eventType string) string {
	return TopicPrefixOATH + "/" + RealmLevel(realmPath) + "/" + level(userID) + "/" + level(eventType)
}

// RealmLevel converts a realm path to a single topic level.
func RealmLevel(realmPath string) string {
	trimmed := strings.Trim(realmPath, "/")
	if trimmed == "" {
		return rootRealmLevel
	}
	return level(strings.ReplaceAll(trimmed, "/", "."))
}

// levelReplacer strips characters that carry meaning inside a topic.
var levelReplacer = strings.NewReplacer("/", "_", "+", "_", "#", "_")

func level(s string) string {
	if s == "" {
		return "_"
	}
	return levelReplacer.Replace(s)
}
