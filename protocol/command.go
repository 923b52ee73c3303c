package protocol

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"stocktrader/models"
	"stocktrader/service"

	"github.com/shopspring/decimal"
)

// Command names as they appear on the wire. Matching is case-sensitive.
const (
	CommandBuy      = "BUY"
	CommandSell     = "SELL"
	CommandList     = "LIST"
	CommandBalance  = "BALANCE"
	CommandQuit     = "QUIT"
	CommandShutdown = "SHUTDOWN"
)

// Amounts and prices are plain decimals with bounded precision. Exponent
// notation is refused so one token cannot expand into an enormous number.
var quantityPattern = regexp.MustCompile(`^[+-]?(\d{1,18}(\.\d{0,8})?|\.\d{1,8})$`)

// Command is a parsed request line
type Command interface {
	Name() string
}

// BuyCommand is BUY <symbol> <amount> <price> <user_id>
type BuyCommand struct {
	Request models.TradeRequest
}

// SellCommand is SELL <symbol> <amount> <price> <user_id>
type SellCommand struct {
	Request models.TradeRequest
}

// ListCommand is LIST [<user_id>]
type ListCommand struct {
	UserID int64
}

// BalanceCommand is BALANCE [<user_id>]
type BalanceCommand struct {
	UserID int64
}

type QuitCommand struct{}

type ShutdownCommand struct{}

func (BuyCommand) Name() string      { return CommandBuy }
func (SellCommand) Name() string     { return CommandSell }
func (ListCommand) Name() string     { return CommandList }
func (BalanceCommand) Name() string  { return CommandBalance }
func (QuitCommand) Name() string     { return CommandQuit }
func (ShutdownCommand) Name() string { return CommandShutdown }

// Parser turns request lines into commands
type Parser struct {
	defaultUserID int64
}

// NewParser creates a parser. LIST and BALANCE without a usable user id
// fall back to defaultUserID.
func NewParser(defaultUserID int64) Parser {
	return Parser{defaultUserID: defaultUserID}
}

// Parse parses one request line without its newline. Failures are
// *service.LedgerError of kind Format or UnknownCommand.
func (p Parser) Parse(line string) (Command, error) {
	fields := strings.Fields(strings.TrimRight(line, "\r\n"))
	if len(fields) == 0 {
		return nil, service.NewUnknownCommandError("")
	}

	switch fields[0] {
	case CommandBuy:
		req, err := parseTrade(fields)
		if err != nil {
			return nil, err
		}
		return BuyCommand{Request: req}, nil
	case CommandSell:
		req, err := parseTrade(fields)
		if err != nil {
			return nil, err
		}
		return SellCommand{Request: req}, nil
	case CommandList:
		return ListCommand{UserID: p.optionalUserID(fields)}, nil
	case CommandBalance:
		return BalanceCommand{UserID: p.optionalUserID(fields)}, nil
	case CommandQuit:
		return QuitCommand{}, nil
	case CommandShutdown:
		return ShutdownCommand{}, nil
	default:
		return nil, service.NewUnknownCommandError(fields[0])
	}
}

func parseTrade(fields []string) (models.TradeRequest, error) {
	formatErr := service.NewFormatError(fmt.Sprintf("Invalid %s command format", fields[0]))
	if len(fields) != 5 {
		return models.TradeRequest{}, formatErr
	}

	amount, err := parseQuantity(fields[2])
	if err != nil {
		return models.TradeRequest{}, formatErr
	}
	price, err := parseQuantity(fields[3])
	if err != nil {
		return models.TradeRequest{}, formatErr
	}
	userID, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return models.TradeRequest{}, formatErr
	}

	return models.TradeRequest{
		UserID: userID,
		Symbol: fields[1],
		Amount: amount,
		Price:  price,
	}, nil
}

func parseQuantity(token string) (decimal.Decimal, error) {
	if !quantityPattern.MatchString(token) {
		return decimal.Zero, fmt.Errorf("invalid quantity %q", token)
	}
	return decimal.NewFromString(token)
}

// optionalUserID reads the second token; anything that is not an integer means the default user
func (p Parser) optionalUserID(fields []string) int64 {
	if len(fields) < 2 {
		return p.defaultUserID
	}
	userID, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return p.defaultUserID
	}
	return userID
}
