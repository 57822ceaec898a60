package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"depthScope/internal/exception"
	"depthScope/internal/model"
)

const OKXName = "okx"

// OKX decodes books5 snapshots of perpetual swaps. Sizes arrive in contracts
// and are converted to base units with the instrument's contract multiplier.
type OKX struct {
	endpoint       string
	instrumentsURL string
	client         *http.Client

	symbols     map[string]string
	multipliers map[string]decimal.Decimal
}

func NewOKX(endpoint, instrumentsURL string, client *http.Client) *OKX {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &OKX{
		endpoint:       endpoint,
		instrumentsURL: instrumentsURL,
		client:         client,
		symbols:        make(map[string]string),
	}
}

func (o *OKX) Name() string     { return OKXName }
func (o *OKX) Endpoint() string { return o.endpoint }

// okxInstID maps ETH/USDT to ETH-USDT-SWAP.
func okxInstID(symbol string) (string, error) {
	base, quote, err := splitSymbol(symbol)
	if err != nil {
		return "", err
	}
	return base + "-" + quote + "-SWAP", nil
}

type okxInstruments struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data []struct {
		InstID string `json:"instId"`
		CtVal  string `json:"ctVal"`
		CtMult string `json:"ctMult"`
	} `json:"data"`
}

// Prepare loads contract multipliers once. Every subscribed instrument must
// have one before any size is converted.
func (o *OKX) Prepare(ctx context.Context, symbols []string) error {
	if o.multipliers == nil {
		multipliers, err := o.fetchMultipliers(ctx)
		if err != nil {
			return fmt.Errorf("%w: okx instruments: %v", exception.ErrBootstrap, err)
		}
		o.multipliers = multipliers
	}
	for _, symbol := range symbols {
		instID, err := okxInstID(symbol)
		if err != nil {
			return err
		}
		if _, ok := o.multipliers[instID]; !ok {
			return fmt.Errorf("%w: okx contract multiplier missing for %s", exception.ErrBootstrap, instID)
		}
	}
	return nil
}

func (o *OKX) fetchMultipliers(ctx context.Context) (map[string]decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.instrumentsURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var payload okxInstruments
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if payload.Code != "" && payload.Code != "0" {
		return nil, fmt.Errorf("api error: code=%s msg=%s", payload.Code, payload.Msg)
	}

	out := make(map[string]decimal.Decimal, len(payload.Data))
	for _, inst := range payload.Data {
		ctVal, err := decimal.NewFromString(inst.CtVal)
		if err != nil {
			continue
		}
		ctMult := decimal.NewFromInt(1)
		if inst.CtMult != "" {
			if ctMult, err = decimal.NewFromString(inst.CtMult); err != nil {
				continue
			}
		}
		out[inst.InstID] = ctVal.Mul(ctMult)
	}
	return out, nil
}

type okxSubscribeArg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

type okxSubscribe struct {
	Op   string            `json:"op"`
	Args []okxSubscribeArg `json:"args"`
}

func (o *OKX) SubscribeRequest(symbols []string) (interface{}, error) {
	args := make([]okxSubscribeArg, 0, len(symbols))
	for _, symbol := range symbols {
		instID, err := okxInstID(symbol)
		if err != nil {
			return nil, err
		}
		base, quote, _ := splitSymbol(symbol)
		o.symbols[instID] = base + "/" + quote
		args = append(args, okxSubscribeArg{Channel: "books5", InstID: instID})
	}
	return okxSubscribe{Op: "subscribe", Args: args}, nil
}

type okxMessage struct {
	Event string `json:"event"`
	Code  string `json:"code"`
	Msg   string `json:"msg"`
	Arg   struct {
		Channel string `json:"channel"`
		InstID  string `json:"instId"`
	} `json:"arg"`
	Data []struct {
		Bids [][]string `json:"bids"`
		Asks [][]string `json:"asks"`
		TS   string     `json:"ts"`
	} `json:"data"`
}

func (o *OKX) CheckAck(msg []byte) (bool, error) {
	var m okxMessage
	if err := json.Unmarshal(msg, &m); err != nil {
		return false, nil
	}
	switch m.Event {
	case "subscribe":
		return true, nil
	case "error":
		return false, fmt.Errorf("okx subscribe rejected: code=%s msg=%s", m.Code, m.Msg)
	default:
		return false, nil
	}
}

func (o *OKX) Decode(msg []byte) ([]model.OrderbookSnapshot, error) {
	if strings.TrimSpace(string(msg)) == "pong" {
		return nil, nil
	}
	var m okxMessage
	if err := json.Unmarshal(msg, &m); err != nil {
		return nil, decodeError(OKXName, "json: %v", err)
	}
	if m.Event == "error" {
		return nil, fmt.Errorf("%w: okx error code=%s msg=%s", exception.ErrConnection, m.Code, m.Msg)
	}
	if m.Event != "" {
		return nil, nil
	}

	symbol, ok := o.symbols[m.Arg.InstID]
	if !ok {
		return nil, decodeError(OKXName, "unsubscribed instrument %q", m.Arg.InstID)
	}
	multiplier, ok := o.multipliers[m.Arg.InstID]
	if !ok {
		return nil, decodeError(OKXName, "no contract multiplier for %s", m.Arg.InstID)
	}

	out := make([]model.OrderbookSnapshot, 0, len(m.Data))
	for _, item := range m.Data {
		bids, err := levelsFromStrings(OKXName, item.Bids, multiplier)
		if err != nil {
			return nil, err
		}
		asks, err := levelsFromStrings(OKXName, item.Asks, multiplier)
		if err != nil {
			return nil, err
		}
		ts, err := strconv.ParseInt(item.TS, 10, 64)
		if err != nil {
			return nil, decodeError(OKXName, "ts %q: %v", item.TS, err)
		}
		out = append(out, model.OrderbookSnapshot{
			Venue:     OKXName,
			Symbol:    symbol,
			Bids:      bids,
			Asks:      asks,
			Timestamp: ts,
		})
	}
	return out, nil
}
