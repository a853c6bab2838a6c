package lead_test

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"reflect"
	"testing"

	"github.com/google/uuid"

	"github.com/concretoya/api/internal/services/lead"
	"github.com/concretoya/api/internal/testutil"
)

var testDB *testutil.TestDB

func TestMain(m *testing.M) {
	var code int
	defer func() { os.Exit(code) }()

	db, err := testutil.SetupTestDB()
	if err != nil {
		log.Fatalf("setting up test database: %v", err)
	}
	defer db.Close()
	testDB = db

	code = m.Run()
}

func TestCreateAndGet(t *testing.T) {
	testDB.Truncate(t)
	svc := lead.NewService(testDB.Pool, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, lead.CreateParams{
		Name:       "Jorge Ramírez",
		Email:      "jorge@example.com",
		Phone:      "+52 33 9876 5432",
		Message:    "Necesito cotizar una losa de 120 m²",
		SourcePage: "/calculadora",
		UTM: map[string]string{
			"utm_source":   "google",
			"utm_campaign": "losas-cdmx",
		},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := svc.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Email != "jorge@example.com" {
		t.Errorf("email = %q", got.Email)
	}
	if got.SourcePage != "/calculadora" {
		t.Errorf("source page = %q", got.SourcePage)
	}
	if !reflect.DeepEqual(got.UTM, created.UTM) {
		t.Errorf("utm = %v, want %v", got.UTM, created.UTM)
	}

	if _, err := svc.Get(ctx, uuid.New()); !errors.Is(err, lead.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCreate_RequiresContact(t *testing.T) {
	testDB.Truncate(t)
	svc := lead.NewService(testDB.Pool, nil)
	ctx := context.Background()

	tests := []lead.CreateParams{
		{},
		{Name: "Solo Nombre"},
		{Email: "solo@example.com"},
	}
	for _, params := range tests {
		if _, err := svc.Create(ctx, params); !errors.Is(err, lead.ErrMissingContact) {
			t.Errorf("Create(%+v): expected ErrMissingContact, got %v", params, err)
		}
	}
}

func TestCreate_OptionalFieldsMayBeEmpty(t *testing.T) {
	testDB.Truncate(t)
	svc := lead.NewService(testDB.Pool, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, lead.CreateParams{
		Name:  "Ana López",
		Email: "ana@example.com",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := svc.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Phone != "" || got.Message != "" || got.SourcePage != "" || got.UTM != nil {
		t.Errorf("optional fields not empty: %+v", got)
	}
}

func TestList(t *testing.T) {
	testDB.Truncate(t)
	svc := lead.NewService(testDB.Pool, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.Create(ctx, lead.CreateParams{
			Name:  fmt.Sprintf("Contacto %d", i),
			Email: fmt.Sprintf("contacto%d@example.com", i),
		})
		if err != nil {
			t.Fatalf("Create %d: %v", i, err)
		}
	}

	page, err := svc.List(ctx, 1, 3)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page) != 3 {
		t.Errorf("page 1 size = %d, want 3", len(page))
	}

	rest, err := svc.List(ctx, 2, 3)
	if err != nil {
		t.Fatalf("List page 2: %v", err)
	}
	if len(rest) != 2 {
		t.Errorf("page 2 size = %d, want 2", len(rest))
	}

	// Out-of-range parameters degrade to defaults rather than failing.
	if _, err := svc.List(ctx, 0, -1); err != nil {
		t.Errorf("List with bad paging: %v", err)
	}
}
