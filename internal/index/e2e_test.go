//nolint:errcheck
package index_test

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"testing"

	"github.com/SpatiumPortae/peershare/internal/index"
	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/assert"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// imageEnv names the image of a containerised index server, built from the
// repository Dockerfile.
const imageEnv = "PEERSHARE_INDEX_IMAGE"

type indexContainer struct {
	testcontainers.Container
	URI string
}

func TestE2E(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping E2E test...")
	}
	image := os.Getenv(imageEnv)
	if image == "" {
		t.Skipf("skipping E2E test, %s is not set", imageEnv)
	}
	ctx := context.Background()
	indexC, err := setupIndex(ctx, image)
	if err != nil {
		t.Fatalf("unable to setup index server: %s", err)
	}
	t.Cleanup(func() {
		if err := indexC.Terminate(ctx); err != nil {
			t.Fatal(err)
		}
	})

	c := index.NewClient(indexC.URI)
	assert.NoError(t, c.Ping(ctx))
	testStore(t, c)
}

func setupIndex(ctx context.Context, image string) (*indexContainer, error) {
	req := testcontainers.ContainerRequest{
		Image:        image,
		ExposedPorts: []string{"8080/tcp"},
		WaitingFor: wait.ForHTTP("/ping").WithPort(nat.Port("8080/tcp")).WithStatusCodeMatcher(
			func(status int) bool { return status == http.StatusOK }),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, err
	}
	ip, err := container.Host(ctx)
	if err != nil {
		return nil, err
	}
	mappedPort, err := container.MappedPort(ctx, "8080")
	if err != nil {
		return nil, err
	}
	uri := fmt.Sprintf("%s:%d", ip, mappedPort.Int())

	return &indexContainer{Container: container, URI: uri}, nil
}
