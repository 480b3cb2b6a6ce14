package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/compartedu/backend/internal/adapter/storage"
	"github.com/compartedu/backend/internal/core/service"
)

const (
	mysqlDSN      = "root:root@tcp(localhost:3306)/compartedu?parseTime=true"
	redisAddr     = "localhost:6379"
	initialStock  = 20
	totalRequests = 50
)

func main() {
	ctx := context.Background()

	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		log.Fatalf("failed to open mysql: %v", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer rdb.Close()

	logger := zerolog.Nop()
	cache := storage.NewRedisAdapter(rdb)

	stockStore := storage.NewMySQLStockStore(db)
	requestStore := storage.NewMySQLRequestStore(db)
	listingStore := storage.NewMySQLListingStore(db)

	stockSvc := service.NewStockService(stockStore, logger)
	listingSvc := service.NewListingService(listingStore, stockStore, stockSvc, logger)
	requestSvc := service.NewRequestService(requestStore, listingStore, stockSvc, listingSvc, cache, logger)

	// Fresh listing per run so leftovers from earlier runs cannot skew counts
	listing, err := listingSvc.CreateListing(ctx, service.CreateListingInput{
		OwnerID: "stress-owner",
		Title:   fmt.Sprintf("stress run %s", time.Now().Format("20060102150405")),
		Total:   initialStock,
	})
	if err != nil {
		log.Fatalf("failed to create listing: %v", err)
	}

	var successCount atomic.Int32
	var failCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := requestSvc.CreateRequest(ctx, service.CreateRequestInput{
				RequesterID: uuid.NewString(),
				ListingID:   listing.ID,
				Quantity:    1,
				RequestedAt: time.Now(),
			})
			if err == nil {
				successCount.Add(1)
			} else {
				failCount.Add(1)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	fail := failCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Failed:           %d\n", fail)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	stock, err := stockSvc.GetByListing(ctx, listing.ID)
	if err != nil {
		log.Fatalf("failed to read final stock: %v", err)
	}
	fmt.Printf("Final Counters:   total=%d reserved=%d available=%d\n",
		stock.Total, stock.Reserved, stock.Available)

	// Every winner must hold exactly one reserved unit and the pool must
	// never go negative. Version-conflict retries can exhaust under heavy
	// contention, so success may undershoot the pool but never overshoot.
	switch {
	case stock.Available < 0:
		fmt.Println("FAIL: available went negative")
	case int(success) != stock.Reserved:
		fmt.Printf("FAIL: %d successes but %d reserved\n", success, stock.Reserved)
	case success > initialStock:
		fmt.Printf("FAIL: oversold, %d successes for %d units\n", success, initialStock)
	default:
		fmt.Println("PASS: reservations match successes, no oversell")
	}
}
