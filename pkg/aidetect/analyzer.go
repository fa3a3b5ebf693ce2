package aidetect

import (
	"context"
	"errors"
	"fmt"

	"github.com/derwolz/TwitterScraper/pkg/logger"
	"github.com/derwolz/TwitterScraper/pkg/store"
)

// ErrUserNotFound is returned when analyzing a user that was never collected
var ErrUserNotFound = errors.New("user not found")

// Store is the persistence the analyzer reads bios from and writes results to
type Store interface {
	GetUser(ctx context.Context, username string) (*store.User, error)
	ListUsers(ctx context.Context) ([]store.User, error)
	UnanalyzedUsers(ctx context.Context) ([]store.User, error)
	SaveAnalysis(ctx context.Context, username string, isAI bool, keywords []string) error
}

// UserResult is the analysis of one user
type UserResult struct {
	Username string
	Bio      string
	Classification
}

// Summary aggregates a bulk analysis run
type Summary struct {
	Total   int
	AIUsers int
	Failed  int
	Results []UserResult
}

// AIPercentage is the share of analyzed users classified as AI-related
func (s *Summary) AIPercentage() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.AIUsers) / float64(s.Total) * 100
}

// Analyzer runs a Detector over stored users
type Analyzer struct {
	detector *Detector
	store    Store
	logger   logger.Logger
}

// NewAnalyzer creates an analyzer; a nil detector uses the built-in keywords
func NewAnalyzer(d *Detector, st Store, log logger.Logger) *Analyzer {
	if d == nil {
		d = NewDetector()
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Analyzer{detector: d, store: st, logger: log.WithField("component", "aidetect")}
}

// Detector returns the detector in use
func (a *Analyzer) Detector() *Detector { return a.detector }

// AnalyzeUser classifies one stored user and saves the result
func (a *Analyzer) AnalyzeUser(ctx context.Context, username string) (*UserResult, error) {
	u, err := a.store.GetUser(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, username)
	}
	return a.analyze(ctx, u)
}

func (a *Analyzer) analyze(ctx context.Context, u *store.User) (*UserResult, error) {
	res := &UserResult{
		Username:       u.Username,
		Bio:            u.Bio,
		Classification: a.detector.Classify(u.Bio),
	}
	if err := a.store.SaveAnalysis(ctx, u.Username, res.IsAIRelated, res.Keywords); err != nil {
		return nil, err
	}
	return res, nil
}

// AnalyzeAll classifies every stored user
func (a *Analyzer) AnalyzeAll(ctx context.Context) (*Summary, error) {
	users, err := a.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	return a.run(ctx, users)
}

// AnalyzeUnanalyzed classifies users with a bio and no stored analysis
func (a *Analyzer) AnalyzeUnanalyzed(ctx context.Context) (*Summary, error) {
	users, err := a.store.UnanalyzedUsers(ctx)
	if err != nil {
		return nil, err
	}
	return a.run(ctx, users)
}

func (a *Analyzer) run(ctx context.Context, users []store.User) (*Summary, error) {
	a.logger.WithField("users", len(users)).Info("starting bio analysis")

	summary := &Summary{}
	for i := range users {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		res, err := a.analyze(ctx, &users[i])
		if err != nil {
			a.logger.WithError(err).WithField("username", users[i].Username).Warn("failed to analyze user")
			summary.Failed++
			continue
		}

		summary.Total++
		if res.IsAIRelated {
			summary.AIUsers++
			a.logger.DebugWithFields("AI-related user", map[string]interface{}{
				"username": res.Username,
				"keywords": len(res.Keywords),
			})
		}
		summary.Results = append(summary.Results, *res)
	}

	a.logger.InfoWithFields("bio analysis finished", map[string]interface{}{
		"analyzed":      summary.Total,
		"ai_users":      summary.AIUsers,
		"failed":        summary.Failed,
		"ai_percentage": fmt.Sprintf("%.2f", summary.AIPercentage()),
	})
	return summary, nil
}
