package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"dormdesk/internal/config"
	"dormdesk/internal/models"
	"dormdesk/internal/occupancy"
	"dormdesk/internal/store"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DashboardService recomputes the KPI dashboard on every request.
type DashboardService struct {
	base
	activitySize int
	feedSize     int
}

func NewDashboardService(docs store.Documents, cols config.CollectionsConfig, cfg config.DashboardConfig, logger *zerolog.Logger) *DashboardService {
	activity, feed := cfg.ActivitySize, cfg.FeedSize
	if activity <= 0 {
		activity = 5
	}
	if feed <= 0 {
		feed = 10
	}
	return &DashboardService{
		base:         newBase(docs, cols, nil, logger, "dashboard"),
		activitySize: activity,
		feedSize:     feed,
	}
}

type dashboardData struct {
	students         int
	rooms            []models.Room
	contracts        []models.Contract
	pendingPayments  []models.Payment
	pendingCheckouts int
	windowPayments   []models.Payment
	paidInWindow     []models.Payment
	foodOrders       []models.FoodOrder
	activity         []models.ActivityItem
}

// Build fetches everything the dashboard needs in three parallel batches and aggregates it.
func (s *DashboardService) Build(ctx context.Context, rng models.TimeRange) (*models.Dashboard, error) {
	if !rng.Valid() {
		v := newValidation()
		v.add("range", "range must be week, month, quarter or year")
		return nil, v
	}

	now := s.now().UTC()
	buckets := Buckets(rng, now)
	windowStart := buckets[0].Start

	var data dashboardData

	// students, rooms, active contracts
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		docs, err := s.listAll(gctx, s.cols.Users, store.NewQuery(
			store.Equal("role", models.RoleStudent),
			store.NotEqual("isDeleted", true),
		))
		data.students = len(docs)
		return err
	})
	g.Go(func() error {
		docs, err := s.listAll(gctx, s.cols.Rooms, store.NewQuery(store.NotEqual("isDeleted", true)))
		if err != nil {
			return err
		}
		data.rooms, err = store.DecodeAll[models.Room](docs)
		return err
	})
	g.Go(func() error {
		var err error
		data.contracts, err = ActiveContracts(gctx, s.docs, s.cols.Contracts)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// pending payments and checkout requests
	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error {
		docs, err := s.listAll(gctx, s.cols.Payments, store.NewQuery(store.Equal("status", models.PaymentPending)))
		if err != nil {
			return err
		}
		data.pendingPayments, err = store.DecodeAll[models.Payment](docs)
		return err
	})
	g.Go(func() error {
		docs, err := s.listAll(gctx, s.cols.CheckoutRequests, store.NewQuery(store.Equal("status", models.CheckoutPending)))
		data.pendingCheckouts = len(docs)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// windowed payments and food orders plus the recent activity sources
	var recent [4][]models.ActivityItem
	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error {
		docs, err := s.listAll(gctx, s.cols.Payments, store.NewQuery(store.GreaterThanEqual(store.FieldCreatedAt, windowStart)))
		if err != nil {
			return err
		}
		data.windowPayments, err = store.DecodeAll[models.Payment](docs)
		return err
	})
	// paid inside the window but created before it
	g.Go(func() error {
		docs, err := s.listAll(gctx, s.cols.Payments, store.NewQuery(
			store.Equal("status", models.PaymentPaid),
			store.GreaterThanEqual("paidDate", windowStart),
		))
		if err != nil {
			return err
		}
		data.paidInWindow, err = store.DecodeAll[models.Payment](docs)
		return err
	})
	g.Go(func() error {
		docs, err := s.listAll(gctx, s.cols.FoodOrders, store.NewQuery(store.GreaterThanEqual(store.FieldCreatedAt, windowStart)))
		if err != nil {
			return err
		}
		data.foodOrders, err = store.DecodeAll[models.FoodOrder](docs)
		return err
	})
	sources := []struct {
		collection string
		describe   func(store.Document) (models.ActivityItem, error)
	}{
		{s.cols.Payments, paymentActivity},
		{s.cols.Contracts, contractActivity},
		{s.cols.FoodOrders, foodOrderActivity},
		{s.cols.CheckoutRequests, checkoutActivity},
	}
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			list, err := s.docs.List(gctx, src.collection, store.NewQuery().OrderDesc(store.FieldCreatedAt).Page(s.activitySize, 0))
			if err != nil {
				s.logger.Error().Err(err).Str("collection", src.collection).Msg("Failed to load recent activity")
				return fmt.Errorf("recent %s: %w", src.collection, err)
			}
			for _, d := range list.Documents {
				item, err := src.describe(d)
				if err != nil {
					s.logger.Warn().Err(err).Str("collection", src.collection).Str("id", d.ID()).Msg("Skipping malformed activity document")
					continue
				}
				item.ID = d.ID()
				item.Timestamp = d.CreatedAt()
				recent[i] = append(recent[i], item)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, items := range recent {
		data.activity = append(data.activity, items...)
	}
	data.windowPayments = mergePayments(data.windowPayments, data.paidInWindow)

	return aggregate(data, rng, buckets, now, s.feedSize), nil
}

func (s *DashboardService) listAll(ctx context.Context, collection string, q store.Query) ([]store.Document, error) {
	docs, err := store.ListAll(ctx, s.docs, collection, q)
	if err != nil {
		s.logger.Error().Err(err).Str("collection", collection).Msg("Failed to load dashboard data")
		return nil, fmt.Errorf("load %s: %w", collection, err)
	}
	return docs, nil
}

func aggregate(data dashboardData, rng models.TimeRange, buckets []models.RevenuePoint, now time.Time, feedSize int) *models.Dashboard {
	d := &models.Dashboard{
		Range:       rng,
		GeneratedAt: now,
		Revenue:     buckets,
		RoomStatus:  make(map[models.RoomStatus]int, len(models.RoomStatuses)),
		PaymentStatus: map[models.PaymentStatus]int{
			models.PaymentPaid:    0,
			models.PaymentPending: 0,
			models.PaymentFailed:  0,
		},
	}
	for _, st := range models.RoomStatuses {
		d.RoomStatus[st] = 0
	}

	idx := occupancy.NewIndex(data.contracts)
	occupied, capacity := 0, 0
	for _, room := range data.rooms {
		occ := idx.Derive(room)
		d.RoomStatus[occ.Status]++
		capacity += max(room.Capacity, 0)
		if occ.Status == models.RoomRemainingSpace || occ.Status == models.RoomFull {
			occupied += occ.ActiveContracts
		}
	}

	sum := &d.Summary
	sum.TotalStudents = data.students
	sum.TotalRooms = len(data.rooms)
	sum.ActiveContracts = len(data.contracts)
	sum.TotalCapacity = capacity
	sum.OccupiedBeds = occupied
	sum.OccupancyRate = OccupancyRate(occupied, capacity)
	sum.PendingCheckouts = data.pendingCheckouts

	sum.PendingPayments = len(data.pendingPayments)
	for _, p := range data.pendingPayments {
		sum.PendingAmount += p.Effective()
	}

	for _, p := range data.windowPayments {
		if _, ok := d.PaymentStatus[p.Status]; ok {
			d.PaymentStatus[p.Status]++
		}
		if p.Status != models.PaymentPaid {
			continue
		}
		if i := bucketIndex(buckets, p.EffectiveDate()); i >= 0 {
			d.Revenue[i].Amount += p.Effective()
			sum.Revenue += p.Effective()
		}
	}
	for i := range d.Revenue {
		d.Revenue[i].Amount = round2(d.Revenue[i].Amount)
	}
	sum.Revenue = round2(sum.Revenue)
	sum.PendingAmount = round2(sum.PendingAmount)

	for _, o := range data.foodOrders {
		if o.Status == "cancelled" {
			continue
		}
		sum.FoodOrders++
		sum.FoodOrdersRevenue += o.TotalAmount
	}
	sum.FoodOrdersRevenue = round2(sum.FoodOrdersRevenue)

	d.Activity = ActivityFeed(data.activity, now, feedSize)
	return d
}

// mergePayments appends the payments in extra that base does not already hold.
func mergePayments(base, extra []models.Payment) []models.Payment {
	seen := make(map[string]struct{}, len(base))
	for _, p := range base {
		seen[p.ID] = struct{}{}
	}
	for _, p := range extra {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		base = append(base, p)
	}
	return base
}

// OccupancyRate is occupied over capacity as a percentage rounded to one decimal.
func OccupancyRate(occupied, capacity int) float64 {
	if capacity <= 0 {
		return 0
	}
	return math.Round(float64(occupied)/float64(capacity)*1000) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Buckets splits the window ending at now into its sub-periods: 7 days for a
// week, 4 seven-day spans for a month, and 3 or 12 calendar months for a
// quarter or year. The last bucket always ends at now.
func Buckets(rng models.TimeRange, now time.Time) []models.RevenuePoint {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	var points []models.RevenuePoint
	switch rng {
	case models.RangeWeek:
		for i := 6; i >= 0; i-- {
			start := day.AddDate(0, 0, -i)
			points = append(points, models.RevenuePoint{Label: start.Format("Jan 2"), Start: start, End: start.AddDate(0, 0, 1)})
		}
	case models.RangeMonth:
		for i := 4; i >= 1; i-- {
			start := day.AddDate(0, 0, 1-7*i)
			points = append(points, models.RevenuePoint{Label: start.Format("Jan 2"), Start: start, End: start.AddDate(0, 0, 7)})
		}
	case models.RangeQuarter, models.RangeYear:
		n := 3
		if rng == models.RangeYear {
			n = 12
		}
		for i := n - 1; i >= 0; i-- {
			start := month.AddDate(0, -i, 0)
			points = append(points, models.RevenuePoint{Label: start.Format("Jan 2006"), Start: start, End: start.AddDate(0, 1, 0)})
		}
	default:
		return nil
	}
	points[len(points)-1].End = now
	return points
}

// bucketIndex returns the bucket containing t, or -1. Buckets are half-open
// except the last, which includes now.
func bucketIndex(buckets []models.RevenuePoint, t time.Time) int {
	for i, b := range buckets {
		if t.Before(b.Start) {
			continue
		}
		if t.Before(b.End) || (i == len(buckets)-1 && t.Equal(b.End)) {
			return i
		}
	}
	return -1
}

// ActivityFeed sorts items newest first, caps them at size and stamps each
// with a relative time.
func ActivityFeed(items []models.ActivityItem, now time.Time, size int) []models.ActivityItem {
	out := append([]models.ActivityItem(nil), items...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if size > 0 && len(out) > size {
		out = out[:size]
	}
	for i := range out {
		out[i].TimeAgo = TimeAgo(out[i].Timestamp, now)
	}
	if out == nil {
		out = []models.ActivityItem{}
	}
	return out
}

// TimeAgo renders the distance between t and now the way the activity feed shows it.
func TimeAgo(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return plural(int(d/time.Minute), "minute") + " ago"
	case d < 24*time.Hour:
		return plural(int(d/time.Hour), "hour") + " ago"
	default:
		return plural(int(d/(24*time.Hour)), "day") + " ago"
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func paymentActivity(d store.Document) (models.ActivityItem, error) {
	var p models.Payment
	if err := store.Decode(d, &p); err != nil {
		return models.ActivityItem{}, err
	}
	return models.ActivityItem{
		Type:        models.ActivityPayment,
		Description: fmt.Sprintf("Payment of %.2f (%s)", p.Effective(), p.Status),
	}, nil
}

func contractActivity(d store.Document) (models.ActivityItem, error) {
	var c models.Contract
	if err := store.Decode(d, &c); err != nil {
		return models.ActivityItem{}, err
	}
	return models.ActivityItem{
		Type:        models.ActivityContract,
		Description: fmt.Sprintf("Contract for %d room(s) is %s", len(c.RoomIDs), c.Status),
	}, nil
}

func foodOrderActivity(d store.Document) (models.ActivityItem, error) {
	var o models.FoodOrder
	if err := store.Decode(d, &o); err != nil {
		return models.ActivityItem{}, err
	}
	label := o.OrderNumber
	if label == "" {
		label = d.ID()
	}
	return models.ActivityItem{
		Type:        models.ActivityFoodOrder,
		Description: fmt.Sprintf("Food order %s totalling %.2f", label, o.TotalAmount),
	}, nil
}

func checkoutActivity(d store.Document) (models.ActivityItem, error) {
	var r models.CheckoutRequest
	if err := store.Decode(d, &r); err != nil {
		return models.ActivityItem{}, err
	}
	who := r.UserName
	if who == "" {
		who = r.UserID
	}
	return models.ActivityItem{
		Type:        models.ActivityCheckout,
		Description: fmt.Sprintf("Checkout request from %s is %s", who, r.Status),
	}, nil
}
