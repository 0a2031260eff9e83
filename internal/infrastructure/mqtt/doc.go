// Package mqtt publishes MFA device events to an MQTT broker.
//
// The service is a publisher only. Each successful device removal or skip
// change is sent as a JSON event on
//
//	graylogic/mfa/oath/{realm}/{user}/{event}
//
// and the service advertises its own liveness on the retained topic
// graylogic/mfa/system/status, with a Last Will so subscribers see an
// offline status if the process dies.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, logger)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	events := mqtt.NewEventPublisher(client, byte(cfg.MQTT.QoS))
//	resource, err := devices.NewResource(devices.Deps{Events: events, ...})
package mqtt
