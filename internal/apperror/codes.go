package apperror

// Code represents a unique error code for the application.
type Code string

// General error codes
const (
	CodeRequiredField      Code = "REQUIRED_FIELD"
	CodeInvalidInput       Code = "INVALID_INPUT"
	CodeInvalidState       Code = "INVALID_STATE"
	CodeNotFound           Code = "NOT_FOUND"
	CodeConfigurationError Code = "CONFIGURATION_ERROR"
	CodeInternalError      Code = "INTERNAL_ERROR"
	CodeUnknownError       Code = "UNKNOWN_ERROR"
)

// Gateway and connectivity error codes
const (
	CodeGatewayConnectionFailed Code = "GATEWAY_CONNECTION_FAILED"
	CodeGatewayAPIError         Code = "GATEWAY_API_ERROR"
	CodeGatewayRateLimited      Code = "GATEWAY_RATE_LIMITED"
	CodeWebSocketClosed         Code = "WEBSOCKET_CLOSED"
	CodeReconnectLimitExceeded  Code = "RECONNECT_LIMIT_EXCEEDED"
	CodeSubscriptionCancelled   Code = "SUBSCRIPTION_CANCELLED"
)

// Market-data error codes
const (
	CodeInvalidOrderBook      Code = "INVALID_ORDER_BOOK"
	CodeInsufficientLiquidity Code = "INSUFFICIENT_LIQUIDITY"
	CodeStalePrice            Code = "STALE_PRICE"
)

// Sizing and funds error codes, raised before any order leaves the process.
const (
	CodeInsufficientSpotAmountFunds Code = "INSUFFICIENT_SPOT_AMOUNT_FUNDS"
	CodeInsufficientSpotCostFunds   Code = "INSUFFICIENT_SPOT_COST_FUNDS"
	CodeInsufficientSwapAmountFunds Code = "INSUFFICIENT_SWAP_AMOUNT_FUNDS"
	CodeInsufficientSwapCostFunds   Code = "INSUFFICIENT_SWAP_COST_FUNDS"
	CodeBalanceUnavailable          Code = "BALANCE_UNAVAILABLE"
)

// Execution error codes. The leg-specific codes drive compensation; the
// combined codes mean both legs failed and manual intervention is needed.
const (
	CodeOpenSpotOrderFailed  Code = "OPEN_SPOT_ORDER_FAILED"
	CodeOpenSwapOrderFailed  Code = "OPEN_SWAP_ORDER_FAILED"
	CodeCloseSpotOrderFailed Code = "CLOSE_SPOT_ORDER_FAILED"
	CodeCloseSwapOrderFailed Code = "CLOSE_SWAP_ORDER_FAILED"
	CodeDealOpenFailed       Code = "DEAL_OPEN_FAILED"
	CodeDealCloseFailed      Code = "DEAL_CLOSE_FAILED"
	CodeCompensationFailed   Code = "COMPENSATION_FAILED"
)

// Persistence error codes. These are fatal: a ledger that cannot be written
// must halt the process rather than drift from reality.
const (
	CodeLedgerReadFailed  Code = "LEDGER_READ_FAILED"
	CodeLedgerWriteFailed Code = "LEDGER_WRITE_FAILED"
	CodeLedgerFull        Code = "LEDGER_FULL"
)

// messages maps codes to default human-readable messages.
var messages = map[Code]string{
	CodeRequiredField:      "required field missing",
	CodeInvalidInput:       "invalid input",
	CodeInvalidState:       "invalid state",
	CodeNotFound:           "not found",
	CodeConfigurationError: "configuration error",
	CodeInternalError:      "internal error",
	CodeUnknownError:       "unknown error",

	CodeGatewayConnectionFailed: "gateway connection failed",
	CodeGatewayAPIError:         "gateway API error",
	CodeGatewayRateLimited:      "gateway rate limited",
	CodeWebSocketClosed:         "websocket closed",
	CodeReconnectLimitExceeded:  "reconnect limit exceeded",
	CodeSubscriptionCancelled:   "subscription cancelled",

	CodeInvalidOrderBook:      "invalid or empty order book",
	CodeInsufficientLiquidity: "order book depth does not cover requested notional",
	CodeStalePrice:            "price quote is stale",

	CodeInsufficientSpotAmountFunds: "spot amount below instrument minimum",
	CodeInsufficientSpotCostFunds:   "spot cost below instrument minimum",
	CodeInsufficientSwapAmountFunds: "swap amount below instrument minimum",
	CodeInsufficientSwapCostFunds:   "swap cost below instrument minimum",
	CodeBalanceUnavailable:          "venue balance unavailable",

	CodeOpenSpotOrderFailed:  "spot open order failed",
	CodeOpenSwapOrderFailed:  "swap open order failed",
	CodeCloseSpotOrderFailed: "spot close order failed",
	CodeCloseSwapOrderFailed: "swap close order failed",
	CodeDealOpenFailed:       "both legs failed to open",
	CodeDealCloseFailed:      "both legs failed to close",
	CodeCompensationFailed:   "compensating order failed",

	CodeLedgerReadFailed:  "deal ledger read failed",
	CodeLedgerWriteFailed: "deal ledger write failed",
	CodeLedgerFull:        "deal ledger at configured capacity",
}
