// Package natsclient manages a single NATS connection for the NATS input.
//
// A Client dials lazily, follows the connection through reconnects, reports
// the connected state to the core metrics, and drains on close:
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//	    natsclient.WithName("linesink"),
//	    natsclient.WithLogger(logger),
//	    natsclient.WithMetrics(registry),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close(context.Background())
//
//	msgs := make(chan *nats.Msg, 64)
//	sub, err := client.ChanQueueSubscribe("events.>", "linesink", msgs)
//
// Status moves through disconnected, connecting, connected and reconnecting,
// and ends at closed once Close has run.
package natsclient
