package mocks

//go:generate mockgen -destination=./mock_market_data_provider.go -package=mocks github.com/rxtech-lab/argo-paper-trading/internal/marketdata Provider
//go:generate mockgen -destination=./mock_publisher.go -package=mocks github.com/rxtech-lab/argo-paper-trading/internal/events Publisher
//go:generate mockgen -destination=./mock_gateway.go -package=mocks github.com/rxtech-lab/argo-paper-trading/internal/storage Gateway
