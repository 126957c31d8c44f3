package demoapi

import (
	"net/http"
	"time"

	"github.com/hiprotech/portal/infrastructure/http/response"
)

type Product struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Price    float64 `json:"price"`
	Stock    int     `json:"stock"`
}

type Order struct {
	ID        string    `json:"id"`
	ProductID string    `json:"productId"`
	Quantity  int       `json:"quantity"`
	Status    string    `json:"status"`
	PlacedAt  time.Time `json:"placedAt"`
}

var products = []Product{
	{ID: "p-100", Name: "Hydraulic Pump HP-2", Category: "pumps", Price: 1249.00, Stock: 14},
	{ID: "p-101", Name: "Pressure Gauge 0-250 bar", Category: "instruments", Price: 89.50, Stock: 120},
	{ID: "p-102", Name: "Seal Kit SK-40", Category: "spares", Price: 34.90, Stock: 310},
	{ID: "p-103", Name: "Control Valve CV-8", Category: "valves", Price: 612.00, Stock: 0},
}

var orderEpoch = time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authorize(w, r); !ok {
		return
	}
	response.Success(w, http.StatusOK, "Products retrieved", products)
}

// listOrders returns a fixed order history for every signed-in user.
func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.authorize(w, r)
	if !ok {
		return
	}
	orders := []Order{
		{ID: "o-" + userID + "-1", ProductID: "p-101", Quantity: 2, Status: "delivered", PlacedAt: orderEpoch},
		{ID: "o-" + userID + "-2", ProductID: "p-102", Quantity: 10, Status: "processing", PlacedAt: orderEpoch.AddDate(0, 1, 3)},
	}
	response.Success(w, http.StatusOK, "Orders retrieved", orders)
}
