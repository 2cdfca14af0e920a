package history

import "fmt"

// Request is a message to the engine: RequestRecord, RequestUndo,
// RequestRedo or RequestClear.
type Request interface {
	request()
}

type RequestRecord struct {
	Changes []Change
}

type RequestUndo struct{}
type RequestRedo struct{}
type RequestClear struct{}

func (RequestRecord) request() {}
func (RequestUndo) request()   {}
func (RequestRedo) request()   {}
func (RequestClear) request()  {}

// Record wraps changes in a RequestRecord.
func Record(changes ...Change) RequestRecord {
	return RequestRecord{Changes: changes}
}

// Result summarises one handled request.
type Result struct {
	Action      string  // "record", "undo", "redo", "clear"
	Outcome     Outcome // records only
	Description string
	Digest      string
	Batch       Batch // applied or recorded batch; nil when nothing happened
}

// Handle dispatches a request to Record, Undo, Redo or Clear.
func (e *Engine) Handle(req Request) (Result, error) {
	switch req := req.(type) {
	case RequestRecord:
		outcome, err := e.Record(req.Changes)
		if err != nil {
			return Result{Action: "record"}, err
		}
		res := Result{Action: "record", Outcome: outcome, Description: outcome.String()}
		if outcome == Pushed || outcome == Coalesced {
			if top, ok := e.history.UndoTop(); ok {
				res.Batch = top
				res.Description = fmt.Sprintf("%s: %s", outcome, top)
				res.Digest = top.LastSnapshot().Digest()
			}
		}
		return res, nil
	case RequestUndo:
		return e.result("undo", e.Undo)
	case RequestRedo:
		return e.result("redo", e.Redo)
	case RequestClear:
		e.Clear()
		return Result{Action: "clear", Description: "cleared history"}, nil
	}
	return Result{}, fmt.Errorf("history: unsupported request %T", req)
}

func (e *Engine) result(action string, fn func() (Batch, error)) (Result, error) {
	batch, err := fn()
	res := Result{Action: action, Batch: batch}
	if err != nil {
		return res, err
	}
	if batch == nil {
		res.Description = "nothing to " + action
		return res, nil
	}
	res.Description = action + ": " + batch.String()
	res.Digest = batch.LastSnapshot().Digest()
	return res, nil
}
