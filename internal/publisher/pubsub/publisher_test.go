package pubsub_test

import (
	"context"
	"encoding/json"
	"testing"

	gpubsub "cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/JakeFAU/showcase-refresher/internal/publisher/pubsub"
)

func fakeServer(t *testing.T) (*pstest.Server, option.ClientOption) {
	t.Helper()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return srv, option.WithGRPCConn(conn)
}

func TestPublisherPublishesJSON(t *testing.T) {
	ctx := context.Background()
	srv, connOpt := fakeServer(t)

	admin, err := gpubsub.NewClient(ctx, "project-id", connOpt)
	require.NoError(t, err)
	_, err = admin.CreateTopic(ctx, "showcase-refreshed")
	require.NoError(t, err)

	pub, err := pubsub.New(ctx, "project-id", "showcase-refreshed", connOpt)
	require.NoError(t, err)

	id, err := pub.Publish(ctx, map[string]string{"project": "proj-a"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(msgs[0].Data, &payload))
	assert.Equal(t, "proj-a", payload["project"])
	assert.Equal(t, "application/json", msgs[0].Attributes["content_type"])
}

func TestNewMissingTopic(t *testing.T) {
	ctx := context.Background()
	_, connOpt := fakeServer(t)

	_, err := pubsub.New(ctx, "project-id", "absent", connOpt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestNilPublisher(t *testing.T) {
	t.Parallel()

	var pub *pubsub.Publisher
	_, err := pub.Publish(context.Background(), "x")
	require.Error(t, err)
}
