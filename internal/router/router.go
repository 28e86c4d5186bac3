package router

import (
	"net/http"

	"github.com/senyabanana/procurement-core/internal/handlers"
)

func InitRoutes(bidHandler *handlers.BidHandler, supervisionHandler *handlers.SupervisionHandler, revealHandler *handlers.RevealHandler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/ping", handlers.PingHandler)

	mux.HandleFunc("/api/bids", bidHandler.ListBids)
	mux.HandleFunc("/api/bids/new", bidHandler.CreateBid)
	mux.HandleFunc("/api/bids/my", bidHandler.ListMyBids)
	mux.HandleFunc("GET /api/bids/{bidId}", bidHandler.GetBid)
	mux.HandleFunc("GET /api/bids/{bidId}/status", bidHandler.GetBidStatus)
	mux.HandleFunc("/api/bids/{bidId}/submit", bidHandler.SubmitBid)
	mux.HandleFunc("/api/bids/{bidId}/review", bidHandler.ReviewBid)
	mux.HandleFunc("GET /api/bids/{bidId}/review_log", bidHandler.ReviewLog)
	mux.HandleFunc("/api/bids/{bidId}/publish_direct", bidHandler.PublishDirect)
	mux.HandleFunc("/api/bids/{bidId}/cancel", bidHandler.CancelBid)
	mux.HandleFunc("/api/bids/{bidId}/edit", bidHandler.EditBid)

	mux.HandleFunc("PUT /api/bids/{bidId}/supervision", supervisionHandler.Decide)
	mux.HandleFunc("GET /api/bids/{bidId}/supervision", supervisionHandler.ListRecords)

	mux.HandleFunc("GET /api/bids/{bidId}/reveal", revealHandler.CheckReveal)
	mux.HandleFunc("POST /api/bids/{bidId}/reveal", revealHandler.SpendReveal)

	return mux
}
