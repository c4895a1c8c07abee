package trafficlight

var NewExpectCodeFunc = newExpectCodeFunc

// Pending reports how many transitions wait in the message queue.
func (l *TrafficLight) Pending() int {
	return l.messages.Len()
}
