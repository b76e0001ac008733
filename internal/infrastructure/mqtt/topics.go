package mqtt

import "fmt"

// Topic roots.
//
//	actuator/command/{device_id}          core -> device bridge
//	actuator/ack/{device_id}              device bridge -> core
//	actuator/core/recommendations         decision process -> core
//	actuator/core/event/{type}            core -> observers
//	actuator/system/status                retained online/offline status
const (
	TopicPrefix       = "actuator"
	TopicPrefixCore   = "actuator/core"
	TopicPrefixSystem = "actuator/system"
)

// Topics provides builders for actuator MQTT topics.
type Topics struct{}

// DeviceCommand returns the topic a bridge listens on for writes to a device.
func (Topics) DeviceCommand(deviceID string) string {
	return fmt.Sprintf("%s/command/%s", TopicPrefix, deviceID)
}

// DeviceAck returns the topic a bridge answers on after applying a write.
func (Topics) DeviceAck(deviceID string) string {
	return fmt.Sprintf("%s/ack/%s", TopicPrefix, deviceID)
}

// AllDeviceAcks matches acknowledgements from every device.
func (Topics) AllDeviceAcks() string {
	return TopicPrefix + "/ack/+"
}

// Recommendations is where recommendation batches are published for intake.
func (Topics) Recommendations() string {
	return TopicPrefixCore + "/recommendations"
}

// CoreEvent returns the topic for a core event such as "execution.recorded".
func (Topics) CoreEvent(eventType string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefixCore, eventType)
}

// AllCoreEvents matches every core event.
func (Topics) AllCoreEvents() string {
	return TopicPrefixCore + "/event/+"
}

// SystemStatus is the retained online/offline status topic.
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}
