// Package realtime provides a websocket client for the conversational AI
// engine's realtime API.
//
// A Client dials the engine and returns a Session. The Session sends typed
// client events (session configuration, audio appends, response control) and
// exposes server events through an iterator fed by a background read loop:
//
//	client := realtime.NewClient(apiKey)
//	session, err := client.Connect(ctx, &realtime.ConnectConfig{Model: model})
//	if err != nil {
//	    return err
//	}
//	defer session.Close()
//
//	for event, err := range session.Events() {
//	    ...
//	}
package realtime
