package features

import (
	"math"
	"strconv"
	"time"

	"github.com/OrderLens/OrderLens-Go/pipelines/Warehouse"
	"github.com/OrderLens/OrderLens-Go/utils"
)

// PredictorNames is the fixed predictor column order. Models are trained and
// queried positionally against it, so consumers must not reorder it.
var PredictorNames = []string{
	"payment_value",
	"payment_installments",
	"product_photos_qty",
	"product_description_lenght",
	"product_weight_g",
	"purchase_dayofweek",
}

// NumPredictors is the width of every predictor vector
const NumPredictors = 6

// FeatureRecord is one fully joined, denormalized row. Customer, product and
// seller attributes repeat across the item-payment fan-out of an order.
type FeatureRecord struct {
	OrderID         string  `json:"order_id"`
	CustomerID      string  `json:"customer_id"`
	ProductID       string  `json:"product_id"`
	SellerID        string  `json:"seller_id"`
	OrderStatus     string  `json:"order_status"`
	CustomerCity    string  `json:"customer_city"`
	CustomerState   string  `json:"customer_state"`
	SellerCity      string  `json:"seller_city"`
	SellerState     string  `json:"seller_state"`
	CategoryName    string  `json:"product_category_name"`
	CategoryEnglish string  `json:"product_category_name_english"`
	ReviewScore     float64 `json:"review_score"`
	LateDelivery    float64 `json:"late_delivery"`
	Churn           float64 `json:"churn"`
}

// Dataset is the prepared training set: the predictor matrix plus the three
// target columns and the joined records, row-aligned.
type Dataset struct {
	X            [][]float64
	ReviewScore  []float64
	LateDelivery []float64
	Churn        []float64
	Records      []FeatureRecord
}

// NumRows returns the number of prepared rows
func (d *Dataset) NumRows() int {
	return len(d.X)
}

// FeatureNames returns a copy of the fixed predictor column order
func (d *Dataset) FeatureNames() []string {
	names := make([]string, len(PredictorNames))
	copy(names, PredictorNames)
	return names
}

// timestampLayouts are tried in order when parsing warehouse timestamps
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02",
}

// churnStatuses are the order statuses counted as churn
var churnStatuses = map[string]bool{
	"canceled":    true,
	"unavailable": true,
}

// Prepare flattens a warehouse snapshot into the training dataset.
//
// Join order is fixed, each step an outer-left join preserving every order
// row: orders, order_items, order_payments, order_reviews, customers,
// products, sellers, category_translation. An order with N items and M
// payments fans out to N*M rows; each predicted unit is an
// item-payment combination, not a unique order.
//
// After joining, timestamps and numerics are coerced tolerantly, the derived
// labels are computed, and rows missing review_score or payment_value are
// dropped. Those are the only two hard row filters.
func Prepare(snapshot warehouse.Snapshot) (*Dataset, error) {
	orders := OrdersFromTable(snapshot.Table("orders"))
	items := OrderItemsFromTable(snapshot.Table("order_items"))
	payments := PaymentsFromTable(snapshot.Table("order_payments"))
	reviews := ReviewsFromTable(snapshot.Table("order_reviews"))
	customers := CustomersFromTable(snapshot.Table("customers"))
	products := ProductsFromTable(snapshot.Table("products"))
	sellers := SellersFromTable(snapshot.Table("sellers"))
	translations := CategoryTranslationsFromTable(snapshot.Table("category_translation"))

	itemsByOrder := make(map[string][]OrderItem, len(orders))
	for _, item := range items {
		itemsByOrder[item.OrderID] = append(itemsByOrder[item.OrderID], item)
	}
	paymentsByOrder := make(map[string][]Payment, len(orders))
	for _, p := range payments {
		paymentsByOrder[p.OrderID] = append(paymentsByOrder[p.OrderID], p)
	}
	reviewByOrder := make(map[string]Review, len(reviews))
	for _, r := range reviews {
		if _, exists := reviewByOrder[r.OrderID]; !exists {
			reviewByOrder[r.OrderID] = r
		}
	}
	customerByID := make(map[string]Customer, len(customers))
	for _, c := range customers {
		customerByID[c.CustomerID] = c
	}
	productByID := make(map[string]Product, len(products))
	for _, p := range products {
		productByID[p.ProductID] = p
	}
	sellerByID := make(map[string]Seller, len(sellers))
	for _, s := range sellers {
		sellerByID[s.SellerID] = s
	}
	translationByName := make(map[string]CategoryTranslation, len(translations))
	for _, tr := range translations {
		translationByName[tr.CategoryName] = tr
	}

	dataset := &Dataset{}
	dropped := 0

	for _, order := range orders {
		orderItems := itemsByOrder[order.OrderID]
		if len(orderItems) == 0 {
			// Left join: keep the order with a null item row
			orderItems = []OrderItem{{}}
		}
		orderPayments := paymentsByOrder[order.OrderID]
		if len(orderPayments) == 0 {
			orderPayments = []Payment{{}}
		}

		review, hasReview := reviewByOrder[order.OrderID]

		purchaseTS := parseTimestamp(order.PurchaseTimestamp)
		deliveredTS := parseTimestamp(order.DeliveredCustomerDate)
		estimatedTS := parseTimestamp(order.EstimatedDeliveryDate)

		dayOfWeek := math.NaN()
		if purchaseTS != nil {
			// Monday=0 through Sunday=6
			dayOfWeek = float64((int(purchaseTS.Weekday()) + 6) % 7)
		}

		late := 0.0
		if deliveredTS != nil && estimatedTS != nil && deliveredTS.After(*estimatedTS) {
			late = 1.0
		}

		churn := 0.0
		if churnStatuses[order.Status] {
			churn = 1.0
		}

		reviewScore := math.NaN()
		if hasReview {
			reviewScore = parseNumeric(review.Score)
		}

		customer := customerByID[order.CustomerID]

		for _, item := range orderItems {
			product := productByID[item.ProductID]
			seller := sellerByID[item.SellerID]
			translation := translationByName[product.CategoryName]

			photos := parseNumericOrZero(product.PhotosQty)
			description := parseNumericOrZero(product.DescriptionLength)
			weight := parseNumericOrZero(product.WeightG)

			for _, payment := range orderPayments {
				paymentValue := parseNumeric(payment.Value)
				installments := parseNumeric(payment.Installments)

				// The two hard row filters
				if math.IsNaN(reviewScore) || math.IsNaN(paymentValue) {
					dropped++
					continue
				}

				dataset.X = append(dataset.X, []float64{
					paymentValue,
					installments,
					photos,
					description,
					weight,
					dayOfWeek,
				})
				dataset.ReviewScore = append(dataset.ReviewScore, reviewScore)
				dataset.LateDelivery = append(dataset.LateDelivery, late)
				dataset.Churn = append(dataset.Churn, churn)
				dataset.Records = append(dataset.Records, FeatureRecord{
					OrderID:         order.OrderID,
					CustomerID:      order.CustomerID,
					ProductID:       item.ProductID,
					SellerID:        item.SellerID,
					OrderStatus:     order.Status,
					CustomerCity:    customer.City,
					CustomerState:   customer.State,
					SellerCity:      seller.City,
					SellerState:     seller.State,
					CategoryName:    product.CategoryName,
					CategoryEnglish: translation.English,
					ReviewScore:     reviewScore,
					LateDelivery:    late,
					Churn:           churn,
				})
			}
		}
	}

	utils.GetLogger().Info("Feature pipeline prepared",
		utils.Int("rows", dataset.NumRows()),
		utils.Int("dropped", dropped),
		utils.Component("features"))

	return dataset, nil
}

// parseTimestamp parses a warehouse timestamp; invalid values become missing
func parseTimestamp(value string) *time.Time {
	if value == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return &ts
		}
	}
	return nil
}

// parseNumeric parses a numeric cell; invalid values become NaN (missing)
func parseNumeric(value string) float64 {
	if value == "" {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// parseNumericOrZero parses a numeric cell, defaulting to 0 when unparsable
func parseNumericOrZero(value string) float64 {
	f := parseNumeric(value)
	if math.IsNaN(f) {
		return 0
	}
	return f
}
