package workflow

import (
	"context"
	"log/slog"
	"os"
	"testing"

	apitesting "github.com/Avexra-AI/SAS-Chatbot/api/testing"
)

var (
	testDB   *apitesting.DB
	testCHDB *apitesting.ClickHouseDB
)

func TestMain(m *testing.M) {
	var err error
	testDB, err = apitesting.NewDB(context.Background(), slog.Default(), nil)
	if err != nil {
		slog.Warn("PostgreSQL container unavailable, integration tests will be skipped", "error", err)
		testDB = nil
	}
	testCHDB, err = apitesting.NewClickHouseDB(context.Background(), slog.Default(), nil)
	if err != nil {
		slog.Warn("ClickHouse container unavailable, integration tests will be skipped", "error", err)
		testCHDB = nil
	}

	code := m.Run()

	if testDB != nil {
		testDB.Close()
	}
	if testCHDB != nil {
		testCHDB.Close()
	}
	os.Exit(code)
}
