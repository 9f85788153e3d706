package surrealdb

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/hbarro/lares/internal/common"
)

var (
	containerOnce sync.Once
	container     *surrealContainer
	containerErr  error
)

// surrealContainer wraps one SurrealDB testcontainer shared by every test
// in this package.
type surrealContainer struct {
	container testcontainers.Container
	host      string
	port      string
}

// startSurrealDB starts the shared container on first use. Tests skip when
// no container runtime is available rather than failing the run.
func startSurrealDB(t *testing.T) *surrealContainer {
	t.Helper()

	containerOnce.Do(func() {
		// testcontainers panics (rather than returning an error) when no
		// container runtime is present; route that into the skip path.
		defer func() {
			if r := recover(); r != nil {
				containerErr = fmt.Errorf("container runtime unavailable: %v", r)
			}
		}()

		ctx := context.Background()

		req := testcontainers.ContainerRequest{
			Image:        "surrealdb/surrealdb:v3.0.0",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--user", "root", "--pass", "root"},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("8000/tcp"),
				wait.ForLog("Started web server"),
			).WithDeadline(60 * time.Second),
		}

		c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
		if err != nil {
			containerErr = fmt.Errorf("start SurrealDB container: %w", err)
			return
		}

		host, err := c.Host(ctx)
		if err != nil {
			c.Terminate(ctx)
			containerErr = fmt.Errorf("get SurrealDB host: %w", err)
			return
		}

		mappedPort, err := c.MappedPort(ctx, "8000/tcp")
		if err != nil {
			c.Terminate(ctx)
			containerErr = fmt.Errorf("get SurrealDB port: %w", err)
			return
		}

		container = &surrealContainer{container: c, host: host, port: mappedPort.Port()}
	})

	if containerErr != nil {
		t.Skipf("SurrealDB container unavailable: %v", containerErr)
	}
	return container
}

// address returns the WebSocket RPC address of the shared container.
func (c *surrealContainer) address() string {
	return fmt.Sprintf("ws://%s:%s/rpc", c.host, c.port)
}

func TestMain(m *testing.M) {
	code := m.Run()
	if container != nil && container.container != nil {
		container.container.Terminate(context.Background())
	}
	os.Exit(code)
}

// testManager connects a Manager to a database unique to the calling test,
// so tests never see each other's records.
func testManager(t *testing.T) *Manager {
	t.Helper()

	sc := startSurrealDB(t)
	config := &common.Config{
		Storage: common.StorageConfig{
			Address:   sc.address(),
			Username:  "root",
			Password:  "root",
			Namespace: "lares_test",
			Database:  fmt.Sprintf("d_%s_%d", sanitizeDBName(t.Name()), time.Now().UnixNano()%100000),
		},
	}

	mgr, err := NewManager(common.NewSilentLogger(), config)
	if err != nil {
		t.Fatalf("connect to SurrealDB: %v", err)
	}
	t.Cleanup(func() { mgr.Close() })
	return mgr
}

func sanitizeDBName(name string) string {
	name = strings.ToLower(name)
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func testContext() context.Context {
	return context.Background()
}
