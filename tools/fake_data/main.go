// Fake Data Tool seeds the database with demo placements, campaigns,
// creatives and line items so a fresh stack serves ads immediately.
//
// Usage:
//
//	go run ./tools/fake_data -campaigns=10 -lineitems=3
//
// The tool always creates a fixed set of demo placements (header, sidebar,
// content_rect) plus one provider fallback mapping, then fills them with
// randomly generated campaigns. Line items get a mix of rotation strategies
// and, for roughly half of them, a random targeting rule, so every pipeline
// stage has data to chew on.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/openadstack/addecide/internal/config"
	"github.com/openadstack/addecide/internal/db"
	"github.com/openadstack/addecide/internal/models"
	"github.com/openadstack/addecide/internal/observability"
)

var (
	campaigns = flag.Int("campaigns", 10, "number of campaigns")
	liPerCamp = flag.Int("lineitems", 3, "line items per campaign")
	seed      = flag.Int64("seed", time.Now().UnixNano(), "rng seed")
)

func main() {
	flag.Parse()

	logger, err := observability.InitLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg := config.Load()
	pg, err := db.InitPostgres(cfg.PostgresDSN, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect postgres: %v\n", err)
		os.Exit(1)
	}
	defer pg.Close()

	ctx := context.Background()
	r := rand.New(rand.NewSource(*seed))

	pls := demoPlacements()
	for i := range pls {
		if err := pg.InsertPlacement(ctx, &pls[i]); err != nil {
			logger.Fatal("insert placement", zap.Error(err))
		}
	}

	// One provider fallback so an empty placement still returns a decision.
	mapping := models.ProviderMapping{
		PlacementID: pls[0].ID,
		TagTemplate: `<script src="https://cdn.adnetwork.example/tag.js" async></script>`,
		Priority:    1,
		IsActive:    true,
	}
	if err := pg.InsertProviderMapping(ctx, &mapping); err != nil {
		logger.Fatal("insert provider mapping", zap.Error(err))
	}

	for c := 0; c < *campaigns; c++ {
		camp := models.Campaign{Name: fakeCampaignName(r), Status: models.StatusActive}
		if err := pg.InsertCampaign(ctx, &camp); err != nil {
			logger.Fatal("insert campaign", zap.Error(err))
		}

		for l := 0; l < *liPerCamp; l++ {
			pl := pls[r.Intn(len(pls))]
			cr := randomCreative(r, pl)
			if err := pg.InsertCreative(ctx, &cr); err != nil {
				logger.Fatal("insert creative", zap.Error(err))
			}

			li := randomLineItem(r, camp.ID, cr.ID, pl.ID)
			if err := pg.InsertLineItem(ctx, &li); err != nil {
				logger.Fatal("insert line item", zap.Error(err))
			}
		}
	}

	fmt.Println("fake data inserted")
}

func demoPlacements() []models.Placement {
	return []models.Placement{
		{Code: "header", Name: "Header Leaderboard", Width: 728, Height: 90},
		{Code: "sidebar", Name: "Sidebar Skyscraper", Width: 160, Height: 600},
		{Code: "content_rect", Name: "Content Rectangle", Width: 300, Height: 250},
	}
}

func fakeCampaignName(r *rand.Rand) string {
	seasons := []string{"Spring", "Summer", "Fall", "Winter", "Holiday"}
	products := []string{"Sale", "Launch", "Promo", "Special"}
	return fmt.Sprintf("%s %s %d", seasons[r.Intn(len(seasons))], products[r.Intn(len(products))], r.Intn(100))
}

func fakeLineItemName(r *rand.Rand) string {
	channels := []string{"Homepage", "Sidebar", "Content", "In-App", "Video"}
	mediums := []string{"Banner", "Native", "Interstitial", "Feed", "Popup"}
	return fmt.Sprintf("%s %s %d", channels[r.Intn(len(channels))], mediums[r.Intn(len(mediums))], r.Intn(1000))
}

var rotationStrategies = []string{
	models.RotationWeightedRandom,
	models.RotationEvenDistribution,
	models.RotationPriorityFirst,
	models.RotationSequential,
	models.RotationABTest,
}

var countries = []string{"US", "CA", "GB", "DE", "FR"}
var deviceTypes = []string{"mobile", "desktop", "tablet"}

func randomLineItem(r *rand.Rand, campaignID, creativeID, placementID string) models.LineItem {
	// start in the past so seeded line items are immediately servable
	start := time.Now().Add(-time.Duration(r.Intn(72)) * time.Hour)
	end := start.Add(time.Duration(r.Intn(21)+7) * 24 * time.Hour)

	li := models.LineItem{
		CampaignID:       campaignID,
		CreativeID:       creativeID,
		PlacementID:      placementID,
		Name:             fakeLineItemName(r),
		Priority:         r.Intn(10) + 1,
		Weight:           r.Intn(9) + 1,
		Status:           models.StatusActive,
		StartAt:          start,
		EndAt:            end,
		RotationStrategy: rotationStrategies[r.Intn(len(rotationStrategies))],
		FreqCapCount:     3,
		FreqCapWindow:    time.Minute,
	}
	if r.Intn(2) == 0 {
		li.Targeting = randomTargeting(r)
	}
	if r.Intn(4) == 0 {
		maxTotal := r.Intn(50000) + 5000
		li.MaxImpressionsTotal = &maxTotal
	}
	return li
}

func randomTargeting(r *rand.Rand) *models.TargetingRule {
	leaves := []models.TargetingRule{
		{Field: "country", Operator: models.CmpIn, Value: []interface{}{countries[r.Intn(len(countries))], countries[r.Intn(len(countries))]}},
		{Field: "device", Operator: models.CmpEqual, Value: deviceTypes[r.Intn(len(deviceTypes))]},
		{Field: "time.hour", Operator: models.CmpGreaterEq, Value: float64(r.Intn(12))},
	}
	if r.Intn(2) == 0 {
		leaf := leaves[r.Intn(len(leaves))]
		return &leaf
	}
	return &models.TargetingRule{
		Op:    models.OpAnd,
		Rules: []models.TargetingRule{leaves[r.Intn(len(leaves))], leaves[r.Intn(len(leaves))]},
	}
}

func randomCreative(r *rand.Rand, pl models.Placement) models.Creative {
	id := r.Intn(10000)
	if r.Intn(5) == 0 {
		return models.Creative{
			Type:          models.CreativeTypeBanner,
			ThirdPartyTag: fmt.Sprintf(`<script src="https://tags.adnetwork.example/%d.js" async></script>`, id),
			Width:         pl.Width,
			Height:        pl.Height,
		}
	}
	return models.Creative{
		Type:             models.CreativeTypeBanner,
		FileURL:          fmt.Sprintf("https://cdn.demo.example/creative_%d_%dx%d.png", id, pl.Width, pl.Height),
		ClickURLTemplate: fmt.Sprintf("https://advertiser.example/landing?cr=%d&utm_medium=display", id),
		Width:            pl.Width,
		Height:           pl.Height,
	}
}
