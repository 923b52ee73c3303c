package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"stocktrader/models"
	"stocktrader/service"
)

// Wire status codes
const (
	CodeOK             = 200
	CodeInvalidCommand = 400
	CodeFormatError    = 403
	CodeInternalError  = 500
)

var reasons = map[int]string{
	CodeOK:             "OK",
	CodeInvalidCommand: "invalid command",
	CodeFormatError:    "message format error",
	CodeInternalError:  "internal error",
}

// Response is a status line plus detail lines
type Response struct {
	Code   int
	Reason string
	Lines  []string

	err error // failure behind an error response, for logging only
}

// OK builds a 200 response
func OK(lines ...string) Response {
	return Response{Code: CodeOK, Reason: reasons[CodeOK], Lines: lines}
}

// ErrorResponse maps a ledger error onto its wire code. Format errors and
// every business-rule failure share 403.
func ErrorResponse(err error) Response {
	var ledgerErr *service.LedgerError
	if !errors.As(err, &ledgerErr) {
		ledgerErr = service.NewStoreFailure(err)
	}

	switch ledgerErr.Kind {
	case service.ErrorKindUnknownCommand:
		return Response{Code: CodeInvalidCommand, Reason: reasons[CodeInvalidCommand], err: ledgerErr}
	case service.ErrorKindStoreFailure:
		return Response{Code: CodeInternalError, Reason: reasons[CodeInternalError], Lines: []string{ledgerErr.Message}, err: ledgerErr}
	default:
		return Response{Code: CodeFormatError, Reason: reasons[CodeFormatError], Lines: []string{ledgerErr.Message}, err: ledgerErr}
	}
}

// Err returns the failure behind an error response, or nil
func (r Response) Err() error {
	return r.err
}

// Status returns the status line without its newline
func (r Response) Status() string {
	return fmt.Sprintf("%d %s", r.Code, r.Reason)
}

// Render returns the wire form: status line, detail lines, then an empty line
func (r Response) Render() string {
	var b strings.Builder
	b.WriteString(r.Status())
	b.WriteByte('\n')
	for _, line := range r.Lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return b.String()
}

// ReadResponse reads one rendered response
func ReadResponse(r *bufio.Reader) (Response, error) {
	status, err := readLine(r)
	if err != nil {
		return Response{}, err
	}

	code, reason, ok := strings.Cut(status, " ")
	if !ok {
		return Response{}, fmt.Errorf("malformed status line %q", status)
	}
	resp := Response{Reason: reason}
	if resp.Code, err = strconv.Atoi(code); err != nil {
		return Response{}, fmt.Errorf("malformed status code %q: %w", code, err)
	}

	for {
		line, err := readLine(r)
		if err != nil {
			return Response{}, err
		}
		if line == "" {
			return resp, nil
		}
		resp.Lines = append(resp.Lines, line)
	}
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func boughtResponse(result *models.TradeResult) Response {
	return OK(fmt.Sprintf("BOUGHT: New balance: %s %s. USD balance $%s",
		result.NewQuantity.StringFixed(2), result.Symbol, result.NewBalance.StringFixed(2)))
}

func soldResponse(result *models.TradeResult) Response {
	return OK(fmt.Sprintf("SOLD: New balance: %s %s. USD $%s",
		result.NewQuantity.StringFixed(2), result.Symbol, result.NewBalance.StringFixed(2)))
}

func listResponse(userID int64, holdings []*models.Holding) Response {
	lines := []string{fmt.Sprintf("The list of records in the Stocks database for user %d:", userID)}
	if len(holdings) == 0 {
		return OK(append(lines, "No stocks found for this user")...)
	}
	for _, h := range holdings {
		lines = append(lines, fmt.Sprintf("%d %s %s %d", h.ID, h.Symbol, h.Quantity.StringFixed(2), h.UserID))
	}
	return OK(lines...)
}

func balanceResponse(balance *models.BalanceResult) Response {
	return OK(fmt.Sprintf("Balance for user %s %s: $%s",
		balance.FirstName, balance.LastName, balance.CashBalance.StringFixed(2)))
}
