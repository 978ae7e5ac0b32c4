//go:build integration

package firestore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"testing"
	"time"

	domain "github.com/ramsey2004/homekraft-api/internal/domain"
	pconfig "github.com/ramsey2004/homekraft-api/internal/platform/config"
	pfirestore "github.com/ramsey2004/homekraft-api/internal/platform/firestore"
	"github.com/ramsey2004/homekraft-api/internal/repositories"
)

func TestProductRepositoryIntegration(t *testing.T) {
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not available: " + err.Error())
	}

	ensureDockerDaemon(t)

	port := freePort(t)
	endpoint := fmt.Sprintf("127.0.0.1:%d", port)
	containerID := startFirestoreEmulator(t, port)
	t.Cleanup(func() { stopContainer(containerID) })

	waitForEndpoint(t, endpoint, 30*time.Second)

	cfg := pconfig.FirestoreConfig{
		ProjectID:    "products-test",
		EmulatorHost: endpoint,
	}

	provider := pfirestore.NewProvider(cfg)
	t.Cleanup(func() {
		_ = provider.Close(context.Background())
	})

	repo, err := NewProductRepository(provider)
	if err != nil {
		t.Fatalf("new product repository: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	client, err := provider.Client(ctx)
	if err != nil {
		t.Fatalf("provider client: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	seed := map[string]any{
		"name":       "Oak Bookshelf",
		"categoryId": "cat_storage",
		"price":      4999.0,
		"inventory":  8,
		"variants": []map[string]any{
			{"id": "var_walnut", "color": "walnut", "quantity": 4, "priceDelta": 500.0},
		},
		"totalStock": 12,
		"createdAt":  now,
		"updatedAt":  now,
	}
	if _, err := client.Collection(productsCollection).Doc("prod_001").Set(ctx, seed); err != nil {
		t.Fatalf("seed product: %v", err)
	}

	result, err := repo.Adjust(ctx, repositories.InventoryAdjustment{
		ProductID: "prod_001",
		Mode:      repositories.AdjustmentDecrement,
		Quantity:  3,
	})
	if err != nil {
		t.Fatalf("decrement: %v", err)
	}
	if result.PreviousQuantity != 8 || result.NewQuantity != 5 {
		t.Fatalf("expected 8 -> 5, got %d -> %d", result.PreviousQuantity, result.NewQuantity)
	}
	if result.Status != domain.StockStatusLow {
		t.Fatalf("expected low stock status, got %s", result.Status)
	}

	// Decrement past zero clamps rather than erroring.
	result, err = repo.Adjust(ctx, repositories.InventoryAdjustment{
		ProductID: "prod_001",
		VariantID: "var_walnut",
		Mode:      repositories.AdjustmentDecrement,
		Quantity:  10,
	})
	if err != nil {
		t.Fatalf("clamped decrement: %v", err)
	}
	if result.NewQuantity != 0 {
		t.Fatalf("expected clamp at zero, got %d", result.NewQuantity)
	}

	loaded, err := repo.FindByID(ctx, "prod_001")
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if loaded.TotalStock() != 5 {
		t.Fatalf("expected total stock 5, got %d", loaded.TotalStock())
	}

	results, err := repo.AdjustMany(ctx, []repositories.InventoryAdjustment{
		{ProductID: "prod_001", Mode: repositories.AdjustmentSet, Quantity: 20},
		{ProductID: "prod_missing", Mode: repositories.AdjustmentIncrement, Quantity: 1},
	})
	if err != nil {
		t.Fatalf("adjust many: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected two results, got %d", len(results))
	}
	if results[0].Err != nil {
		t.Fatalf("expected first adjustment to succeed: %v", results[0].Err)
	}
	if results[0].NewQuantity != 20 {
		t.Fatalf("expected set to 20, got %d", results[0].NewQuantity)
	}
	var invErr *repositories.InventoryError
	if !errors.As(results[1].Err, &invErr) || invErr.Code != repositories.InventoryErrorProductNotFound {
		t.Fatalf("expected product not found for second adjustment, got %v", results[1].Err)
	}

	page, err := repo.List(ctx, repositories.ProductListFilter{
		CategoryID: "cat_storage",
		Pagination: domain.Pagination{PageSize: 10},
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != "prod_001" {
		t.Fatalf("expected seeded product in listing, got %+v", page.Items)
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	addr, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("unable to allocate port: %v", err)
	}
	defer addr.Close()
	return addr.Addr().(*net.TCPAddr).Port
}

func startFirestoreEmulator(t *testing.T, port int) string {
	t.Helper()
	args := []string{
		"run", "-d", "--rm",
		"-p", fmt.Sprintf("%d:8080", port),
		firestoreEmulatorImage,
		"gcloud", "beta", "emulators", "firestore", "start",
		"--host-port=0.0.0.0:8080",
		"--quiet",
	}

	cmd := exec.Command("docker", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("failed to start firestore emulator: %v - %s", err, string(out))
	}
	id := strings.TrimSpace(string(out))
	if id == "" {
		t.Fatalf("docker returned empty container id")
	}
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}

func ensureDockerDaemon(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, "docker", "info")
	if err := cmd.Run(); err != nil {
		t.Fatalf("docker daemon not available: %v", err)
	}
}

func stopContainer(id string) {
	if id == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, "docker", "stop", id)
	_ = cmd.Run()
}

func waitForEndpoint(t *testing.T, endpoint string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", endpoint, 500*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	t.Fatalf("firestore emulator at %s did not become ready within %s", endpoint, timeout)
}

const firestoreEmulatorImage = "gcr.io/google.com/cloudsdktool/cloud-sdk:emulators"
