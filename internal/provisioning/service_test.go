package provisioning

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/dentalops/dental-ai-platform/internal/assistant"
	"github.com/dentalops/dental-ai-platform/internal/practices"
)

type fakePlatform struct {
	assistants  int
	imports     int
	linked      map[string]string
	importErr   error
	assistantID string
}

func (f *fakePlatform) CreateAssistant(_ context.Context, cfg assistant.Config) (string, error) {
	f.assistants++
	if f.assistantID == "" {
		f.assistantID = "asst-1"
	}
	return f.assistantID, nil
}

func (f *fakePlatform) ImportTwilioNumber(_ context.Context, number, twilioSID string) (string, error) {
	if f.importErr != nil {
		return "", f.importErr
	}
	f.imports++
	return "vapi-num-1", nil
}

func (f *fakePlatform) LinkAssistant(_ context.Context, numberID, assistantID string) error {
	if f.linked == nil {
		f.linked = make(map[string]string)
	}
	f.linked[numberID] = assistantID
	return nil
}

type fakeNumbers struct {
	available []string
	purchased []string
	smsURLs   []string
}

func (f *fakeNumbers) SearchAvailableNumbers(_ context.Context, areaCode string, limit int) ([]string, error) {
	return f.available, nil
}

func (f *fakeNumbers) PurchaseNumber(_ context.Context, number, smsURL string) (string, error) {
	f.purchased = append(f.purchased, number)
	f.smsURLs = append(f.smsURLs, smsURL)
	return "PN123", nil
}

func provisioningFixture(t *testing.T) (*Service, *practices.InMemoryRepository, *InMemoryStore, *fakePlatform, *fakeNumbers, uuid.UUID) {
	t.Helper()

	practiceRepo := practices.NewInMemoryRepository()
	practice := &practices.Practice{ID: uuid.New(), Name: "Bright Smile Dental"}
	practiceRepo.Put(practice)

	store := NewInMemoryStore()
	platform := &fakePlatform{}
	numbers := &fakeNumbers{available: []string{"+16155550111"}}

	svc := NewService(ServiceConfig{
		Practices:     practiceRepo,
		Store:         store,
		Platform:      platform,
		Numbers:       numbers,
		Builder:       assistant.NewBuilder("https://api.example.com/webhooks/vapi", "shh"),
		SMSWebhookURL: "https://api.example.com/webhooks/twilio/sms",
	})
	return svc, practiceRepo, store, platform, numbers, practice.ID
}

func TestProvision_EndToEnd(t *testing.T) {
	svc, practiceRepo, store, platform, numbers, practiceID := provisioningFixture(t)

	result, err := svc.Provision(context.Background(), practiceID, "615")
	if err != nil {
		t.Fatalf("provision failed: %v", err)
	}
	if result.PhoneNumber != "+16155550111" || result.TwilioSID != "PN123" {
		t.Errorf("unexpected result: %+v", result)
	}
	if platform.linked["vapi-num-1"] != "asst-1" {
		t.Errorf("number not linked to assistant: %v", platform.linked)
	}
	if numbers.smsURLs[0] != "https://api.example.com/webhooks/twilio/sms" {
		t.Errorf("sms webhook not configured on purchase: %v", numbers.smsURLs)
	}

	// Phone row active and primary.
	rows, _ := store.ListByPractice(context.Background(), practiceID)
	if len(rows) != 1 || rows[0].Status != StatusActive || !rows[0].IsPrimary {
		t.Errorf("unexpected phone rows: %+v", rows)
	}

	// Practice now resolvable by the new number.
	practice, err := practiceRepo.GetByNumber(context.Background(), "+16155550111")
	if err != nil || practice.ID != practiceID {
		t.Errorf("practice not resolvable by provisioned number: %v", err)
	}
}

func TestCreateAssistant_LeavesPendingPlaceholder(t *testing.T) {
	svc, _, store, platform, numbers, practiceID := provisioningFixture(t)

	assistantID, err := svc.CreateAssistant(context.Background(), practiceID)
	if err != nil {
		t.Fatalf("create assistant failed: %v", err)
	}
	if assistantID != "asst-1" || platform.assistants != 1 {
		t.Errorf("unexpected assistant: id=%q created=%d", assistantID, platform.assistants)
	}
	if len(numbers.purchased) != 0 {
		t.Errorf("no number should be purchased, got %v", numbers.purchased)
	}

	rows, _ := store.ListByPractice(context.Background(), practiceID)
	if len(rows) != 1 || rows[0].Status != StatusPending || rows[0].AssistantID != assistantID {
		t.Errorf("expected pending placeholder row, got %+v", rows)
	}
}

func TestProvision_ImportFailureLeavesPendingRow(t *testing.T) {
	svc, _, store, platform, _, practiceID := provisioningFixture(t)
	platform.importErr = errors.New("import rejected")

	_, err := svc.Provision(context.Background(), practiceID, "615")
	if err == nil {
		t.Fatal("expected provisioning error")
	}

	rows, _ := store.ListByPractice(context.Background(), practiceID)
	if len(rows) != 1 || rows[0].Status != StatusPending {
		t.Errorf("expected pending row after failure, got %+v", rows)
	}
}

func TestProvision_SinglePrimaryPerPractice(t *testing.T) {
	svc, _, store, _, numbers, practiceID := provisioningFixture(t)

	if _, err := svc.Provision(context.Background(), practiceID, "615"); err != nil {
		t.Fatalf("first provision failed: %v", err)
	}
	numbers.available = []string{"+16155550222"}
	if _, err := svc.Provision(context.Background(), practiceID, "615"); err != nil {
		t.Fatalf("second provision failed: %v", err)
	}

	rows, _ := store.ListByPractice(context.Background(), practiceID)
	var primaries int
	for _, n := range rows {
		if n.IsPrimary {
			primaries++
		}
	}
	if primaries != 1 {
		t.Errorf("expected exactly one primary number, got %d", primaries)
	}
}
