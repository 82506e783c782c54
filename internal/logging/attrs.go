package logging

import "log/slog"

func SessionID(id string) slog.Attr {
	return slog.String("session_id", id)
}

func FlowID(id string) slog.Attr {
	return slog.String("flow_id", id)
}

func NodeID(id string) slog.Attr {
	return slog.String("node_id", id)
}

func NodeType[T ~string](t T) slog.Attr {
	return slog.String("node_type", string(t))
}

func Status[T ~string](status T) slog.Attr {
	return slog.String("status", string(status))
}

func Err(err error) slog.Attr {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return slog.String("err", msg)
}
