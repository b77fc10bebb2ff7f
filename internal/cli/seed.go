package cli

import (
	"context"
	"errors"
	"log"

	"exam-delivery-service/internal/app"
	"exam-delivery-service/internal/domain"
	"github.com/spf13/cobra"
)

const seedActor = "seed"

// NewSeedCmd loads the demo accounts, sets and assignments.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load demo users, sets and assignments",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			b, err := openBackend(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer b.Close()
			return seed(cmd.Context(), b.repo)
		},
	}
}

func intPtr(v int) *int { return &v }

// seed is a no-op when the demo admin already exists.
func seed(ctx context.Context, repo app.Repository) error {
	if _, err := repo.FindUserByEmail(ctx, "admin@example.com"); err == nil {
		log.Printf("seed data already present")
		return nil
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return err
	}

	accounts := app.NewAccountService(repo)
	audit := app.NewAuditSink(repo)
	defer audit.Wait()
	admin := app.NewAdminService(repo, audit)

	if _, err := accounts.RegisterAdmin(ctx, app.RegisterInput{
		Name: "Admin", Email: "admin@example.com", Password: "admin123", Age: intPtr(35),
	}); err != nil {
		return err
	}
	aisha, err := accounts.Register(ctx, app.RegisterInput{
		Name: "Aisha Khan", Email: "aisha@student.com", Password: "student123", Age: intPtr(19),
	})
	if err != nil {
		return err
	}
	liam, err := accounts.Register(ctx, app.RegisterInput{
		Name: "Liam Chen", Email: "liam@student.com", Password: "student123", Age: intPtr(20),
	})
	if err != nil {
		return err
	}

	fundamentals, err := admin.CreateSet(ctx, seedActor, "Set 1: Fundamentals")
	if err != nil {
		return err
	}
	for _, q := range []app.MCQInput{
		{Text: "What is 2 + 2?", Options: []string{"3", "4", "5", "22"}, CorrectIndex: 1, Justification: "2+2 equals 4."},
		{Text: "Capital of France?", Options: []string{"Berlin", "Paris", "Rome", "Madrid"}, CorrectIndex: 1, Justification: "Paris is the capital."},
	} {
		if _, err := admin.AddMCQ(ctx, seedActor, fundamentals.ID, q); err != nil {
			return err
		}
	}

	reading, err := admin.CreateSet(ctx, seedActor, "Set 2: Reading Comprehension")
	if err != nil {
		return err
	}
	if _, err := admin.AddParagraph(ctx, seedActor, reading.ID, app.ParagraphInput{
		Paragraph: "Sustainability requires balancing economic growth with environmental stewardship...",
		Questions: []app.MCQInput{
			{Text: "Main idea of the passage?", Options: []string{"A", "B", "C", "D"}, CorrectIndex: 2, Justification: "Paragraph discusses option C primarily."},
			{Text: "Tone of the author?", Options: []string{"Neutral", "Critical", "Humorous", "Optimistic"}, CorrectIndex: 0, Justification: "Tone appears neutral."},
		},
	}); err != nil {
		return err
	}

	for _, in := range []app.AssignInput{
		{SetID: fundamentals.ID, UserIDs: []string{aisha.ID}, TimeLimitMinutes: intPtr(20), PassPercent: intPtr(50), MaxAttempts: intPtr(2)},
		{SetID: reading.ID, UserIDs: []string{aisha.ID}, TimeLimitMinutes: intPtr(25), PassPercent: intPtr(60), MaxAttempts: intPtr(3)},
		{SetID: fundamentals.ID, UserIDs: []string{liam.ID}, TimeLimitMinutes: intPtr(15), PassPercent: intPtr(40), MaxAttempts: intPtr(2)},
	} {
		if _, err := admin.AssignSet(ctx, seedActor, in); err != nil {
			return err
		}
	}
	log.Printf("seeded demo data")
	return nil
}
