package server

import (
	"github.com/wirespy/proxycore/pkg/channel"
	"github.com/wirespy/proxycore/pkg/conn"
	"github.com/wirespy/proxycore/pkg/errors"
	"github.com/wirespy/proxycore/pkg/httpmsg"
	"github.com/wirespy/proxycore/pkg/layer"
)

// ConnectionHandler drives one accepted connection from root context
// construction through layer selection to teardown: it is the piece that
// turns a bare net.Conn into a layer.Context and runs the selected root
// layer to completion, translating the result into the right log level.
type ConnectionHandler struct {
	client  *conn.Conn
	channel *channel.Channel
	config  *layer.Config
	mode    string
}

// Run asks the addon chain to approve the connection, selects and runs the
// root layer for the configured mode, and always emits a clientdisconnect
// tell regardless of how the connection ended.
func (h *ConnectionHandler) Run() {
	defer h.channel.Tell("clientdisconnect", h.client)
	if _, err := h.channel.Ask("clientconnect", h.client); err != nil {
		if !errors.IsKill(err) {
			h.channel.Log(channel.LogWarn, "clientconnect refused: "+err.Error())
		}
		return
	}

	rootCtx := &layer.Context{
		Client:  h.client,
		Channel: h.channel,
		Config:  h.config,
		Mode:    h.mode,
	}

	root, err := layer.SelectRootLayer(rootCtx)
	if err != nil {
		h.channel.Log(channel.LogError, "root layer selection failed: "+err.Error())
		h.client.Net().Write(httpmsg.MakeErrorResponse(502, "Bad Gateway", err.Error()))
		return
	}

	if err := root.Run(); err != nil {
		h.logLayerResult(err)
	}
}

// logLayerResult maps a layer's terminal error to the right severity: a
// deliberate kill is quiet, a disconnect-shaped error is debug noise (every
// connection ends in one eventually), anything else is worth a warning
// unless the caller suppressed connection errors entirely.
func (h *ConnectionHandler) logLayerResult(err error) {
	if errors.IsKill(err) {
		return
	}

	var structured *errors.Error
	if errors.As(err, &structured) {
		switch structured.Type {
		case errors.ErrorTypeHTTPDisconnect, errors.ErrorTypeTCPDisconnect:
			h.channel.Log(channel.LogDebug, err.Error())
			return
		}
	}

	if h.config.SuppressConnectionErrors {
		h.channel.Log(channel.LogDebug, err.Error())
		return
	}
	h.channel.Log(channel.LogWarn, err.Error())
}
