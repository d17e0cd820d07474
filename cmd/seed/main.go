package main

import (
	availabilityrepo "agenda/internal/availability/repository"
	availabilityservice "agenda/internal/availability/service"
	availabilityvalidator "agenda/internal/availability/validator"
	"agenda/internal/bookings/admission"
	"agenda/internal/bookings/repository"
	"agenda/internal/bookings/service"
	"agenda/internal/bookings/validator"
	"agenda/internal/notify"
	"agenda/pkg/config"
	apperrors "agenda/pkg/errors"
	"agenda/pkg/model"
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
)

const JobName = "seed"

var services = []string{"consultation", "follow-up", "assessment", "therapy", "check-up"}

func main() {
	resources := flag.Int("resources", 5, "number of resources to create")
	days := flag.Int("days", 10, "number of upcoming days to book")
	perDay := flag.Int("per-day", 8, "booking attempts per resource and day")
	seed := flag.Uint64("seed", uint64(time.Now().UnixNano()), "random seed")
	flag.Parse()

	cfg := config.Load(JobName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	faker := gofakeit.New(*seed)

	availabilityService := availabilityservice.NewAvailabilityService(
		availabilityrepo.NewMongoAvailabilityRepository(cfg),
		availabilityvalidator.NewAvailabilityValidator(cfg.Log),
		nil,
		cfg,
	)
	gate := admission.NewGate(cfg.Log, cfg.AdmissionIdleTimeout, cfg.AdmissionQueueSize)
	defer gate.Close()

	bookingService := service.NewBookingService(service.Dependencies{
		Repo:         repository.NewMongoBookingRepository(cfg),
		Availability: availabilityService,
		Validator:    validator.NewBookingValidator(cfg.Log),
		Gate:         gate,
		Locker:       admission.LocalLocker{},
		Notifier:     notify.NewLogNotifier(cfg.Log),
	}, cfg)

	ctx := context.Background()
	var created, rejected int

	for i := 0; i < *resources; i++ {
		resourceID := fmt.Sprintf("resource-%02d", i+1)
		if err := seedResource(ctx, availabilityService, faker, resourceID); err != nil {
			cfg.Log.Fatal("Failed to seed resource", "resource_id", resourceID, "error", err)
		}

		for d := 1; d <= *days; d++ {
			date := time.Now().UTC().AddDate(0, 0, d).Format(model.DateLayout)
			for n := 0; n < *perDay; n++ {
				candidate := fakeBooking(faker, resourceID, date)
				_, err := bookingService.CreateBooking(ctx, candidate)
				if apperrors.IsRetryable(err) {
					time.Sleep(time.Second)
					_, err = bookingService.CreateBooking(ctx, candidate)
				}
				switch {
				case err == nil:
					created++
				case apperrors.HasCode(err, apperrors.CodeRejected):
					rejected++
				default:
					cfg.Log.Fatal("Failed to seed booking", "resource_id", resourceID, "date", date, "error", err)
				}
			}
		}
		cfg.Log.Info("Resource seeded", "resource_id", resourceID)
	}

	cfg.Log.Info("Seed complete",
		"resources", *resources,
		"bookings_created", created,
		"bookings_rejected", rejected,
		"seed", *seed,
	)
}

// seedResource gives a resource weekday hours with a lunch break and a policy.
func seedResource(ctx context.Context, svc availabilityservice.AvailabilityService, faker *gofakeit.Faker, resourceID string) error {
	slot := []int{15, 30, 45, 60}[faker.Number(0, 3)]
	capacity := faker.Number(1, 3)

	for day := 1; day <= 5; day++ {
		for _, window := range [][2]int{{9 * 60, 12 * 60}, {13 * 60, 17 * 60}} {
			rule := &model.AvailabilityRule{
				ResourceID:    resourceID,
				DayOfWeek:     day,
				StartTime:     window[0],
				EndTime:       window[1],
				SlotDuration:  slot,
				MaxConcurrent: capacity,
				IsActive:      true,
			}
			if err := svc.CreateRule(ctx, rule); err != nil {
				return err
			}
		}
	}

	buffer := []int{0, 5, 10, 15}[faker.Number(0, 3)]
	return svc.PutConfig(ctx, &model.ValidationConfig{
		ResourceID:                resourceID,
		RequireBufferTime:         buffer > 0,
		BufferTimeMinutes:         buffer,
		MaxBookingsPerDay:         faker.Number(10, 30),
		PreventLastMinuteBookings: true,
		LastMinuteThresholdHours:  2,
		Timezone:                  "UTC",
	})
}

func fakeBooking(faker *gofakeit.Faker, resourceID, date string) *model.Booking {
	start := 9*60 + 15*faker.Number(0, 30)
	return &model.Booking{
		ResourceID:      resourceID,
		ServiceID:       services[faker.Number(0, len(services)-1)],
		Date:            date,
		StartTime:       start,
		DurationMinutes: 30,
		ClientName:      faker.Name(),
		ClientEmail:     faker.Email(),
		Notes:           faker.Company(),
		Price:           float64(faker.Number(20, 200)),
	}
}
