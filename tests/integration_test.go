package tests

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/compartedu/backend/internal/adapter/storage"
	"github.com/compartedu/backend/internal/core/domain"
	"github.com/compartedu/backend/internal/core/service"
)

type testEnv struct {
	redis   *redis.Client
	mysql   *sql.DB
	cache   *storage.RedisAdapter
	cleanup func()

	stocks    *service.StockService
	listings  *service.ListingService
	requests  *service.RequestService
	shipments *service.ShipmentService
}

func setupTestEnv(t *testing.T) *testEnv {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		mysqlDSN = "root:root@tcp(localhost:3306)/compartedu?parseTime=true"
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	logger := zerolog.Nop()
	cache := storage.NewRedisAdapter(rdb)

	stockStore := storage.NewMySQLStockStore(db)
	requestStore := storage.NewMySQLRequestStore(db)
	listingStore := storage.NewMySQLListingStore(db)
	shipmentStore := storage.NewMySQLShipmentStore(db)

	stockSvc := service.NewStockService(stockStore, logger)
	listingSvc := service.NewListingService(listingStore, stockStore, stockSvc, logger)
	requestSvc := service.NewRequestService(requestStore, listingStore, stockSvc, listingSvc, cache, logger)
	shipmentSvc := service.NewShipmentService(shipmentStore, requestStore, logger)

	return &testEnv{
		redis: rdb,
		mysql: db,
		cache: cache,
		cleanup: func() {
			rdb.Close()
			db.Close()
		},
		stocks:    stockSvc,
		listings:  listingSvc,
		requests:  requestSvc,
		shipments: shipmentSvc,
	}
}

// createListing publishes a listing through the service and returns it with
// its stock record. Rows are deleted when the test finishes.
func (env *testEnv) createListing(t *testing.T, total int) (*domain.Listing, *domain.Stock) {
	t.Helper()
	ctx := context.Background()

	listing, err := env.listings.CreateListing(ctx, service.CreateListingInput{
		OwnerID: "itest-owner",
		Title:   "integration test listing",
		Total:   total,
	})
	if err != nil {
		t.Fatalf("create listing failed: %v", err)
	}

	stock, err := env.stocks.GetByListing(ctx, listing.ID)
	if err != nil {
		t.Fatalf("load stock failed: %v", err)
	}

	t.Cleanup(func() {
		env.mysql.ExecContext(ctx, `DELETE FROM shipments WHERE request_id IN (SELECT id FROM requests WHERE listing_id = ?)`, listing.ID)
		env.mysql.ExecContext(ctx, `DELETE FROM requests WHERE listing_id = ?`, listing.ID)
		env.mysql.ExecContext(ctx, `DELETE FROM stocks WHERE listing_id = ?`, listing.ID)
		env.mysql.ExecContext(ctx, `DELETE FROM listings WHERE id = ?`, listing.ID)
		env.redis.Del(ctx, "available:"+listing.ID)
	})
	return listing, stock
}

func TestIntegration_FullRequestLifecycle(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	listing, _ := env.createListing(t, 10)

	// Create: 4 units move to reserved
	req, err := env.requests.CreateRequest(ctx, service.CreateRequestInput{
		RequesterID: "itest-requester",
		ListingID:   listing.ID,
		Quantity:    4,
		RequestedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}
	if req.State != domain.RequestStatePending {
		t.Errorf("expected pending, got %s", req.State)
	}

	stock, _ := env.stocks.GetByListing(ctx, listing.ID)
	if stock.Total != 10 || stock.Reserved != 4 || stock.Available != 6 {
		t.Errorf("after create: total=%d reserved=%d available=%d",
			stock.Total, stock.Reserved, stock.Available)
	}

	// The availability cache follows the ledger
	if n, _ := env.cache.GetAvailable(ctx, listing.ID); n != 6 {
		t.Errorf("expected cached available 6, got %d", n)
	}

	// Accept: the units permanently leave the pool
	if _, err := env.requests.AcceptRequest(ctx, req.ID); err != nil {
		t.Fatalf("accept failed: %v", err)
	}

	stock, _ = env.stocks.GetByListing(ctx, listing.ID)
	if stock.Total != 6 || stock.Reserved != 0 || stock.Available != 6 {
		t.Errorf("after accept: total=%d reserved=%d available=%d",
			stock.Total, stock.Reserved, stock.Available)
	}

	// Ship the accepted request
	shipment, err := env.shipments.CreateShipment(ctx, service.CreateShipmentInput{
		RequestID: req.ID,
		Address:   "Av. Test 42",
		District:  "Centro",
		City:      "Lima",
	})
	if err != nil {
		t.Fatalf("create shipment failed: %v", err)
	}
	if shipment.RequestID != req.ID {
		t.Errorf("shipment bound to wrong request: %s", shipment.RequestID)
	}

	// A second accept must be rejected as a stale transition
	_, err = env.requests.AcceptRequest(ctx, req.ID)
	var invalid *domain.InvalidStateTransitionError
	if !errors.As(err, &invalid) {
		t.Errorf("expected InvalidStateTransitionError, got: %v", err)
	}
}

func TestIntegration_RejectRestoresVisibility(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	listing, _ := env.createListing(t, 5)

	req, err := env.requests.CreateRequest(ctx, service.CreateRequestInput{
		RequesterID: "itest-requester",
		ListingID:   listing.ID,
		Quantity:    5,
		RequestedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}

	// Fully reserved: the listing drops out of sight
	got, _ := env.listings.Get(ctx, listing.ID)
	if got.Active {
		t.Error("expected listing inactive at zero available")
	}

	if _, err := env.requests.RejectRequest(ctx, req.ID); err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	stock, _ := env.stocks.GetByListing(ctx, listing.ID)
	if stock.Total != 5 || stock.Reserved != 0 || stock.Available != 5 {
		t.Errorf("after reject: total=%d reserved=%d available=%d",
			stock.Total, stock.Reserved, stock.Available)
	}

	got, _ = env.listings.Get(ctx, listing.ID)
	if !got.Active {
		t.Error("expected listing active again after reject")
	}
}

func TestIntegration_ConcurrentRequestsNeverOversell(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	initialStock := 10
	listing, _ := env.createListing(t, initialStock)

	totalRequests := 20
	var successCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := env.requests.CreateRequest(ctx, service.CreateRequestInput{
				RequesterID: uuid.NewString(),
				ListingID:   listing.ID,
				Quantity:    1,
				RequestedAt: time.Now(),
			})
			if err == nil {
				successCount.Add(1)
			}
		}(i)
	}
	wg.Wait()

	// Version conflicts may push some callers past the retry budget, so the
	// winners can undershoot the pool but must exactly match the reservations.
	stock, _ := env.stocks.GetByListing(ctx, listing.ID)
	if int(successCount.Load()) != stock.Reserved {
		t.Errorf("expected %d reservations, got %d", successCount.Load(), stock.Reserved)
	}
	if stock.Available < 0 || stock.Available+stock.Reserved != stock.Total {
		t.Errorf("broken counters: total=%d reserved=%d available=%d",
			stock.Total, stock.Reserved, stock.Available)
	}

	var pendingCount int
	env.mysql.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM requests WHERE listing_id = ? AND state = 'pending'`,
		listing.ID).Scan(&pendingCount)
	if pendingCount != int(successCount.Load()) {
		t.Errorf("expected %d pending rows, got %d", successCount.Load(), pendingCount)
	}
}

func TestIntegration_IdempotencyPreventsDoubleRequest(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	listing, _ := env.createListing(t, 10)

	key := "itest-key-" + uuid.NewString()
	env.redis.Del(ctx, "request:"+key)
	defer env.redis.Del(ctx, "request:"+key)

	in := service.CreateRequestInput{
		RequestKey:  key,
		RequesterID: "itest-requester",
		ListingID:   listing.ID,
		Quantity:    2,
		RequestedAt: time.Now(),
	}

	if _, err := env.requests.CreateRequest(ctx, in); err != nil {
		t.Fatalf("first create failed: %v", err)
	}

	_, err := env.requests.CreateRequest(ctx, in)
	if !errors.Is(err, domain.ErrDuplicateRequest) {
		t.Errorf("expected ErrDuplicateRequest, got: %v", err)
	}

	stock, _ := env.stocks.GetByListing(ctx, listing.ID)
	if stock.Reserved != 2 {
		t.Errorf("expected a single reservation of 2, got %d", stock.Reserved)
	}
}

func TestIntegration_BulkCancelReleasesStock(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	listing, _ := env.createListing(t, 10)
	requester := "itest-bulk-" + uuid.NewString()

	for _, q := range []int{3, 2} {
		_, err := env.requests.CreateRequest(ctx, service.CreateRequestInput{
			RequesterID: requester,
			ListingID:   listing.ID,
			Quantity:    q,
			RequestedAt: time.Now(),
		})
		if err != nil {
			t.Fatalf("create request failed: %v", err)
		}
	}

	cancelled, err := env.requests.BulkCancelByRequester(ctx, requester)
	if err != nil {
		t.Fatalf("bulk cancel failed: %v", err)
	}
	if cancelled != 2 {
		t.Errorf("expected 2 cancelled, got %d", cancelled)
	}

	stock, _ := env.stocks.GetByListing(ctx, listing.ID)
	if stock.Reserved != 0 || stock.Available != 10 {
		t.Errorf("after bulk cancel: reserved=%d available=%d",
			stock.Reserved, stock.Available)
	}
}
