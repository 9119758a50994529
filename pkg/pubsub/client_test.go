package pubsub

import (
	"context"
	"testing"

	"github.com/angelmondragon/rocketshoes-cart/pkg/config"
)

func TestTopicResourceName(t *testing.T) {
	cases := []struct {
		name      string
		projectID string
		topic     string
		want      string
	}{
		{name: "short id", projectID: "shop", topic: "cart-notifications", want: "projects/shop/topics/cart-notifications"},
		{name: "full name", projectID: "other", topic: "projects/shop/topics/t", want: "projects/shop/topics/t"},
		{name: "trimmed", projectID: " shop ", topic: " t ", want: "projects/shop/topics/t"},
		{name: "empty topic", projectID: "shop", topic: "", want: ""},
		{name: "missing project", projectID: "", topic: "t", want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := TopicResourceName(tc.projectID, tc.topic); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestNewClientValidatesConfig(t *testing.T) {
	ctx := context.Background()
	if _, err := NewClient(ctx, config.GCPConfig{}, config.PubSubConfig{NotificationTopic: "t"}, nil); err != errProjectIDRequired {
		t.Fatalf("expected project id error, got %v", err)
	}
	if _, err := NewClient(ctx, config.GCPConfig{ProjectID: "p"}, config.PubSubConfig{}, nil); err != errNoTopic {
		t.Fatalf("expected topic error, got %v", err)
	}
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	if c.Publisher("t") != nil {
		t.Fatal("expected nil publisher")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := c.Ping(context.Background()); err == nil {
		t.Fatal("expected ping error")
	}
}
