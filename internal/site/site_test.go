package site

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/towerworks/foundation-core/pkg/models"
)

func loadTestSite(t *testing.T) *Provider {
	t.Helper()
	p, err := Load("../../config/site.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return p
}

func TestProfile(t *testing.T) {
	p := loadTestSite(t)
	ctx := context.Background()

	soil, err := p.Profile(ctx, models.Tower{Name: "T-101"})
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if len(soil.Strata) != 2 || soil.RockDepth != 14 {
		t.Fatalf("unexpected profile %+v", soil)
	}
	if err := soil.Validate(); err != nil {
		t.Fatalf("profile should be valid: %v", err)
	}

	// The returned profile is a copy.
	soil.Strata[0].Cohesion = 999
	again, _ := p.Profile(ctx, models.Tower{Name: "T-101"})
	if again.Strata[0].Cohesion == 999 {
		t.Fatal("provider handed out its own profile")
	}
}

func TestProfileUnavailable(t *testing.T) {
	p := loadTestSite(t)
	tests := []struct {
		tower    string
		contains string
	}{
		{"T-103", "borehole log rejected"},
		{"T-105", "no soil entry"},
	}
	for _, tt := range tests {
		t.Run(tt.tower, func(t *testing.T) {
			_, err := p.Profile(context.Background(), models.Tower{Name: tt.tower})
			if !errors.Is(err, ErrProfileUnavailable) {
				t.Fatalf("expected ErrProfileUnavailable, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.contains) {
				t.Fatalf("expected error to mention %q, got %v", tt.contains, err)
			}
		})
	}
}

func TestLoads(t *testing.T) {
	p := loadTestSite(t)
	ctx := context.Background()

	l, err := p.Loads(ctx, models.Tower{Name: "T-104", LoadsRef: "heavy-angle"})
	if err != nil {
		t.Fatalf("Loads: %v", err)
	}
	want := models.Loads{Compression: 620, Tension: 540, Shear: 70, Moment: 20}
	if diff := cmp.Diff(want, l); diff != "" {
		t.Fatalf("unexpected loads (-want +got):\n%s", diff)
	}

	if _, err := p.Loads(ctx, models.Tower{Name: "T-999"}); !errors.Is(err, ErrLoadsUnavailable) {
		t.Fatalf("expected ErrLoadsUnavailable, got %v", err)
	}
}

func TestProviderCancelled(t *testing.T) {
	p := loadTestSite(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Profile(ctx, models.Tower{Name: "T-101"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, err := p.Loads(ctx, models.Tower{Name: "T-101"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestAccepting(t *testing.T) {
	p := loadTestSite(t)
	got := p.Accepting(models.KindMicropile)
	want := []string{"T-101", "T-102", "T-103", "T-104", "T-105"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected micropile towers (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"T-102", "T-105"}, p.Accepting(models.KindFooting)[1:]); diff != "" {
		t.Fatalf("unexpected footing towers (-want +got):\n%s", diff)
	}
	if len(p.Towers()) != 5 {
		t.Fatalf("expected 5 towers, got %d", len(p.Towers()))
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("does-not-exist.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
