package protocol

import (
	"context"
	"errors"

	"stocktrader/service"

	log "github.com/sirupsen/logrus"
)

// State is the lifecycle state of one connection
type State int

const (
	StateOpen State = iota
	StateProcessing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateProcessing:
		return "processing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Transition tells the connection driver what to do after writing a response
type Transition int

const (
	// Continue keeps reading lines
	Continue Transition = iota
	// Close ends this connection only
	Close
	// Shutdown ends this connection and stops the server
	Shutdown
)

// ErrSessionClosed is returned when a line arrives after QUIT or SHUTDOWN
var ErrSessionClosed = errors.New("session closed")

// Interpreter executes parsed commands against the ledger services.
// It holds no per-connection state and is shared by all sessions.
type Interpreter struct {
	parser  Parser
	trading service.TradingService
	queries service.QueryService
}

// NewInterpreter creates a new interpreter
func NewInterpreter(trading service.TradingService, queries service.QueryService, defaultUserID int64) *Interpreter {
	return &Interpreter{
		parser:  NewParser(defaultUserID),
		trading: trading,
		queries: queries,
	}
}

// Execute parses and runs one line
func (i *Interpreter) Execute(ctx context.Context, line string) (Response, Transition) {
	cmd, err := i.parser.Parse(line)
	if err != nil {
		return ErrorResponse(err), Continue
	}

	switch c := cmd.(type) {
	case BuyCommand:
		result, err := i.trading.Buy(ctx, c.Request)
		if err != nil {
			return ErrorResponse(err), Continue
		}
		return boughtResponse(result), Continue
	case SellCommand:
		result, err := i.trading.Sell(ctx, c.Request)
		if err != nil {
			return ErrorResponse(err), Continue
		}
		return soldResponse(result), Continue
	case ListCommand:
		holdings, err := i.queries.List(ctx, c.UserID)
		if err != nil {
			return ErrorResponse(err), Continue
		}
		return listResponse(c.UserID, holdings), Continue
	case BalanceCommand:
		balance, err := i.queries.Balance(ctx, c.UserID)
		if err != nil {
			return ErrorResponse(err), Continue
		}
		return balanceResponse(balance), Continue
	case QuitCommand:
		return OK(), Close
	case ShutdownCommand:
		return OK(), Shutdown
	default:
		return ErrorResponse(service.NewUnknownCommandError(cmd.Name())), Continue
	}
}

// Session is the per-connection state machine around an Interpreter
type Session struct {
	interpreter *Interpreter
	state       State
	logger      *log.Entry
}

// NewSession creates a session in StateOpen
func NewSession(interpreter *Interpreter, logger *log.Entry) *Session {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Session{
		interpreter: interpreter,
		state:       StateOpen,
		logger:      logger,
	}
}

// State returns the current state
func (s *Session) State() State {
	return s.state
}

// Handle processes one line. After a Close or Shutdown transition the
// session is closed and every further call fails with ErrSessionClosed.
func (s *Session) Handle(ctx context.Context, line string) (Response, Transition, error) {
	if s.state != StateOpen {
		return Response{}, Close, ErrSessionClosed
	}

	s.state = StateProcessing
	resp, transition := s.interpreter.Execute(ctx, line)

	fields := log.Fields{
		"command": line,
		"status":  resp.Code,
	}
	switch {
	case resp.Code >= CodeInternalError:
		s.logger.WithFields(fields).WithError(resp.Err()).Error("Command failed")
	case resp.Code != CodeOK:
		fields["kind"] = service.KindOf(resp.Err()).String()
		s.logger.WithFields(fields).Info("Command rejected")
	default:
		s.logger.WithFields(fields).Debug("Command handled")
	}

	if transition == Continue {
		s.state = StateOpen
	} else {
		s.state = StateClosed
	}

	return resp, transition, nil
}

// Close moves the session to StateClosed without handling a line
func (s *Session) Close() {
	s.state = StateClosed
}
