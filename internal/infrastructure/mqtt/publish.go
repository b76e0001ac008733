package mqtt

import "fmt"

// Publish sends payload to topic and waits for the broker to acknowledge
// it at the requested QoS. Only the core status topic is retained; commands
// and events go out with retained false.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := checkTopic(topic, qos); err != nil {
		return err
	}
	if n := len(payload); n > maxPayloadSize {
		return fmt.Errorf("%w: payload of %d bytes exceeds %d", ErrPublishFailed, n, maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	if err := await(c.client.Publish(topic, qos, retained, payload), defaultPublishTimeout, ErrPublishFailed); err != nil {
		return err
	}
	c.traffic.published.Add(1)
	return nil
}

// PublishDefault publishes non-retained at the configured QoS.
func (c *Client) PublishDefault(topic string, payload []byte) error {
	return c.Publish(topic, payload, byte(c.cfg.QoS), false) // #nosec G115 -- qos validated 0..2
}

func checkTopic(topic string, qos byte) error {
	switch {
	case topic == "":
		return ErrInvalidTopic
	case qos > maxQoS:
		return ErrInvalidQoS
	}
	return nil
}
