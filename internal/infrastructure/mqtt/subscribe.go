package mqtt

import "fmt"

// Subscribe routes messages on topic (wildcards allowed) to handler. The
// subscription is tracked before the broker confirms it so a reconnect
// racing the SUBACK still restores it; a refused subscription is
// forgotten again.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if err := checkTopic(topic, qos); err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("%w: nil handler for %s", ErrSubscribeFailed, topic)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.track(topic, &subscription{qos: qos, handler: handler})
	err := await(c.client.Subscribe(topic, qos, c.dispatch(handler)), defaultPublishTimeout, ErrSubscribeFailed)
	if err != nil {
		c.track(topic, nil)
	}
	return err
}

// Unsubscribe stops delivery for topic and drops it from the restore set.
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	c.track(topic, nil)
	return await(c.client.Unsubscribe(topic), defaultPublishTimeout, ErrUnsubscribeFailed)
}

// HasSubscription reports whether topic is tracked (exact string match).
func (c *Client) HasSubscription(topic string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	_, ok := c.subscriptions[topic]
	return ok
}

// track records sub for topic, or forgets topic when sub is nil.
func (c *Client) track(topic string, sub *subscription) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if sub == nil {
		delete(c.subscriptions, topic)
		return
	}
	c.subscriptions[topic] = *sub
}
