package predict

import (
	"errors"
	"fmt"
	"math"

	"github.com/OrderLens/OrderLens-Go/pipelines/ML"
)

// ErrShapeMismatch indicates an input vector whose width does not match the
// trained model
var ErrShapeMismatch = errors.New("input shape does not match trained model")

// Input holds the six predictor values for one prediction request. The
// description-length field keeps the dataset's historical "lenght" spelling.
type Input struct {
	PaymentValue        float64 `json:"payment_value"`
	PaymentInstallments float64 `json:"payment_installments"`
	ProductPhotosQty    float64 `json:"product_photos_qty"`
	DescriptionLength   float64 `json:"product_description_lenght"`
	ProductWeightG      float64 `json:"product_weight_g"`
	PurchaseDayOfWeek   float64 `json:"purchase_dayofweek"`
}

// Vector returns the input in the fixed predictor column order
func (in Input) Vector() []float64 {
	return []float64{
		in.PaymentValue,
		in.PaymentInstallments,
		in.ProductPhotosQty,
		in.DescriptionLength,
		in.ProductWeightG,
		in.PurchaseDayOfWeek,
	}
}

// Result holds the three model outputs for one input
type Result struct {
	ReviewScore float64 `json:"review_score"`
	IsLate      bool    `json:"is_late"`
	WillChurn   bool    `json:"will_churn"`
}

// Service runs one input through the three trained models
type Service struct {
	review *ml.RandomForest
	late   *ml.RandomForest
	churn  *ml.RandomForest
}

// NewService creates a prediction service over the three trained forests
func NewService(review, late, churn *ml.RandomForest) *Service {
	return &Service{review: review, late: late, churn: churn}
}

// Predict evaluates all three models against the input. The review score is
// rounded to two decimal places; the classifications come back as booleans.
func (s *Service) Predict(in Input) (*Result, error) {
	x := in.Vector()

	score, err := s.predictOne(s.review, x)
	if err != nil {
		return nil, fmt.Errorf("review score: %w", err)
	}
	late, err := s.predictOne(s.late, x)
	if err != nil {
		return nil, fmt.Errorf("late delivery: %w", err)
	}
	churn, err := s.predictOne(s.churn, x)
	if err != nil {
		return nil, fmt.Errorf("churn: %w", err)
	}

	return &Result{
		ReviewScore: math.Round(score*100) / 100,
		IsLate:      late >= 0.5,
		WillChurn:   churn >= 0.5,
	}, nil
}

func (s *Service) predictOne(model *ml.RandomForest, x []float64) (float64, error) {
	if model == nil {
		return 0, errors.New("model not loaded")
	}
	if len(x) != model.NumFeatures {
		return 0, fmt.Errorf("%w: expected %d features, got %d", ErrShapeMismatch, model.NumFeatures, len(x))
	}
	return model.Predict(x)
}
