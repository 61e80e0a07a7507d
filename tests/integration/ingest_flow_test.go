package integration

import (
	"bytes"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/SoyunJu/LogCollector-sub000/internal/fingerprint"
)

// These tests run against a live ingest service, consumer, Redis and Postgres.
// They are skipped unless both variables are set.
var (
	ingestorURL = os.Getenv("INTEGRATION_INGEST_URL")
	postgresDSN = os.Getenv("INTEGRATION_POSTGRES_URL")
)

func requireEnv(t *testing.T) *sql.DB {
	t.Helper()
	if ingestorURL == "" || postgresDSN == "" {
		t.Skip("INTEGRATION_INGEST_URL and INTEGRATION_POSTGRES_URL not set")
	}
	db, err := sql.Open("postgres", postgresDSN)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Ping())
	return db
}

func countOccurrences(t *testing.T, db *sql.DB, logHash string) (repeat int64, hosts int64) {
	t.Helper()
	err := db.QueryRow(`SELECT repeat_count FROM error_logs WHERE log_hash = $1`, logHash).Scan(&repeat)
	if err == sql.ErrNoRows {
		return 0, 0
	}
	require.NoError(t, err)
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM error_log_hosts WHERE log_hash = $1`, logHash).Scan(&hosts))
	return repeat, hosts
}

func postNDJSON(t *testing.T, body *bytes.Buffer) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, ingestorURL, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-ndjson")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestIngestionFlow(t *testing.T) {
	db := requireEnv(t)

	// A fresh service name keeps runs independent.
	service := "it-" + uuid.NewString()[:8]
	const batchSize = 100
	hosts := []string{"host-a", "host-b", "host-c"}

	var body bytes.Buffer
	for i := 0; i < batchSize; i++ {
		fmt.Fprintf(&body, `{"service_name":%q,"host_name":%q,"log_level":"ERROR","message":"Connection timed out after %dms (connId=%d)"}`+"\n",
			service, hosts[i%len(hosts)], 3000+i, 1000+i)
	}
	postNDJSON(t, &body)

	key := fingerprint.Fingerprint(service, "Connection timed out after 3000ms (connId=1000)", "")

	var repeat, hostCount int64
	require.Eventually(t, func() bool {
		repeat, hostCount = countOccurrences(t, db, key)
		return repeat == batchSize
	}, 30*time.Second, 500*time.Millisecond, "all variants should aggregate under one key")
	require.EqualValues(t, len(hosts), hostCount)

	// Non-collected levels never reach the store.
	body.Reset()
	fmt.Fprintf(&body, `{"service_name":%q,"log_level":"ERROR","message":"Connection timed out after 1ms"}`+"\n", service)
	fmt.Fprintf(&body, `{"service_name":%q,"log_level":"INFO","message":"Connection timed out after 1ms"}`+"\n", service)
	postNDJSON(t, &body)

	require.Eventually(t, func() bool {
		repeat, _ = countOccurrences(t, db, key)
		return repeat == batchSize+1
	}, 30*time.Second, 500*time.Millisecond)

	time.Sleep(2 * time.Second)
	repeat, _ = countOccurrences(t, db, key)
	require.EqualValues(t, batchSize+1, repeat)
}
