package features

import (
	"github.com/OrderLens/OrderLens-Go/pipelines/Warehouse"
)

// Typed records for the warehouse entities. Fields stay as raw strings on
// decode; coercion happens during Prepare so that bad cells degrade to
// missing values instead of failing the whole table.

// Order is one row of the orders table
type Order struct {
	OrderID               string
	CustomerID            string
	Status                string
	PurchaseTimestamp     string
	DeliveredCustomerDate string
	EstimatedDeliveryDate string
}

// OrderItem is one line item of an order
type OrderItem struct {
	OrderID   string
	ProductID string
	SellerID  string
	Price     string
}

// Payment is one payment record of an order
type Payment struct {
	OrderID      string
	Value        string
	Installments string
}

// Review is the zero-or-one review of an order
type Review struct {
	OrderID string
	Score   string
}

// Customer is one row of the customers table
type Customer struct {
	CustomerID string
	City       string
	State      string
}

// Product is one row of the products table
type Product struct {
	ProductID         string
	CategoryName      string
	PhotosQty         string
	DescriptionLength string
	WeightG           string
}

// Seller is one row of the sellers table
type Seller struct {
	SellerID string
	City     string
	State    string
}

// CategoryTranslation maps a category name to its English translation
type CategoryTranslation struct {
	CategoryName string
	English      string
}

// cell returns the value at the given column index, tolerating missing
// columns and short rows
func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// OrdersFromTable decodes the orders table
func OrdersFromTable(t *warehouse.Table) []Order {
	if t == nil {
		return nil
	}
	idxOrder := t.ColumnIndex("order_id")
	idxCustomer := t.ColumnIndex("customer_id")
	idxStatus := t.ColumnIndex("order_status")
	idxPurchase := t.ColumnIndex("order_purchase_timestamp")
	idxDelivered := t.ColumnIndex("order_delivered_customer_date")
	idxEstimated := t.ColumnIndex("order_estimated_delivery_date")

	orders := make([]Order, 0, t.NumRows())
	for _, row := range t.Rows {
		orders = append(orders, Order{
			OrderID:               cell(row, idxOrder),
			CustomerID:            cell(row, idxCustomer),
			Status:                cell(row, idxStatus),
			PurchaseTimestamp:     cell(row, idxPurchase),
			DeliveredCustomerDate: cell(row, idxDelivered),
			EstimatedDeliveryDate: cell(row, idxEstimated),
		})
	}
	return orders
}

// OrderItemsFromTable decodes the order_items table
func OrderItemsFromTable(t *warehouse.Table) []OrderItem {
	if t == nil {
		return nil
	}
	idxOrder := t.ColumnIndex("order_id")
	idxProduct := t.ColumnIndex("product_id")
	idxSeller := t.ColumnIndex("seller_id")
	idxPrice := t.ColumnIndex("price")

	items := make([]OrderItem, 0, t.NumRows())
	for _, row := range t.Rows {
		items = append(items, OrderItem{
			OrderID:   cell(row, idxOrder),
			ProductID: cell(row, idxProduct),
			SellerID:  cell(row, idxSeller),
			Price:     cell(row, idxPrice),
		})
	}
	return items
}

// PaymentsFromTable decodes the order_payments table
func PaymentsFromTable(t *warehouse.Table) []Payment {
	if t == nil {
		return nil
	}
	idxOrder := t.ColumnIndex("order_id")
	idxValue := t.ColumnIndex("payment_value")
	idxInstallments := t.ColumnIndex("payment_installments")

	payments := make([]Payment, 0, t.NumRows())
	for _, row := range t.Rows {
		payments = append(payments, Payment{
			OrderID:      cell(row, idxOrder),
			Value:        cell(row, idxValue),
			Installments: cell(row, idxInstallments),
		})
	}
	return payments
}

// ReviewsFromTable decodes the order_reviews table
func ReviewsFromTable(t *warehouse.Table) []Review {
	if t == nil {
		return nil
	}
	idxOrder := t.ColumnIndex("order_id")
	idxScore := t.ColumnIndex("review_score")

	reviews := make([]Review, 0, t.NumRows())
	for _, row := range t.Rows {
		reviews = append(reviews, Review{
			OrderID: cell(row, idxOrder),
			Score:   cell(row, idxScore),
		})
	}
	return reviews
}

// CustomersFromTable decodes the customers table
func CustomersFromTable(t *warehouse.Table) []Customer {
	if t == nil {
		return nil
	}
	idxID := t.ColumnIndex("customer_id")
	idxCity := t.ColumnIndex("customer_city")
	idxState := t.ColumnIndex("customer_state")

	customers := make([]Customer, 0, t.NumRows())
	for _, row := range t.Rows {
		customers = append(customers, Customer{
			CustomerID: cell(row, idxID),
			City:       cell(row, idxCity),
			State:      cell(row, idxState),
		})
	}
	return customers
}

// ProductsFromTable decodes the products table. The description-length
// column keeps the dataset's historical "lenght" spelling.
func ProductsFromTable(t *warehouse.Table) []Product {
	if t == nil {
		return nil
	}
	idxID := t.ColumnIndex("product_id")
	idxCategory := t.ColumnIndex("product_category_name")
	idxPhotos := t.ColumnIndex("product_photos_qty")
	idxDescription := t.ColumnIndex("product_description_lenght")
	idxWeight := t.ColumnIndex("product_weight_g")

	products := make([]Product, 0, t.NumRows())
	for _, row := range t.Rows {
		products = append(products, Product{
			ProductID:         cell(row, idxID),
			CategoryName:      cell(row, idxCategory),
			PhotosQty:         cell(row, idxPhotos),
			DescriptionLength: cell(row, idxDescription),
			WeightG:           cell(row, idxWeight),
		})
	}
	return products
}

// SellersFromTable decodes the sellers table
func SellersFromTable(t *warehouse.Table) []Seller {
	if t == nil {
		return nil
	}
	idxID := t.ColumnIndex("seller_id")
	idxCity := t.ColumnIndex("seller_city")
	idxState := t.ColumnIndex("seller_state")

	sellers := make([]Seller, 0, t.NumRows())
	for _, row := range t.Rows {
		sellers = append(sellers, Seller{
			SellerID: cell(row, idxID),
			City:     cell(row, idxCity),
			State:    cell(row, idxState),
		})
	}
	return sellers
}

// CategoryTranslationsFromTable decodes the category_translation table
func CategoryTranslationsFromTable(t *warehouse.Table) []CategoryTranslation {
	if t == nil {
		return nil
	}
	idxName := t.ColumnIndex("product_category_name")
	idxEnglish := t.ColumnIndex("product_category_name_english")

	translations := make([]CategoryTranslation, 0, t.NumRows())
	for _, row := range t.Rows {
		translations = append(translations, CategoryTranslation{
			CategoryName: cell(row, idxName),
			English:      cell(row, idxEnglish),
		})
	}
	return translations
}
