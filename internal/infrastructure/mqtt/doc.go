// Package mqtt provides the bridge's connection to an MQTT broker.
//
// It manages:
//   - Connection with auto-reconnect and subscription restore
//   - Publishing with QoS validation and a payload cap
//   - The retained bridge status topic, also used as the Last Will
//   - Topic builders for entity state, set, command, ack and discovery
//
// # Topic layout
//
//	<prefix>/bridge/status           online | offline (retained, LWT)
//	<prefix>/entity/<uid>/state      entity state JSON (retained)
//	<prefix>/entity/<uid>/set        typed action from the host
//	<prefix>/entity/<uid>/command    raw function write from the host
//	<prefix>/ack/<uid>               command result
//	<discovery>/<component>/<uid>/config
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(client.Topics().AllEntitySets(), 1, handleSet)
package mqtt
