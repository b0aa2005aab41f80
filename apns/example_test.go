package apns_test

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/tinywideclouds/go-apns-dispatcher/apns"
)

func Example() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	d, err := apns.New(apns.Config{
		Environment:  apns.Development,
		KeyID:        "ABC123DEFG",
		TeamID:       "DEF123GHIJ",
		BundleID:     "com.example.app",
		P8KeyContent: os.Getenv("APNS_PRIVATE_KEY"),
	}, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer d.Close()

	n := payload.NewPayload().AlertTitle("Hello").AlertBody("From Go").Sound("default")
	err = d.Send(context.Background(), n, "device-token-hex", apns.WithPriority(apns.PriorityImmediate))

	var derr *apns.DeliveryError
	switch {
	case err == nil:
		log.Println("delivered")
	case errors.As(err, &derr) && derr.Reason == apns2.ReasonUnregistered:
		log.Println("device token is dead; forget it")
	default:
		log.Println(err)
	}
}
