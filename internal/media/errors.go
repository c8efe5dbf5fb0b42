package media

import "errors"

var (
	ErrDeviceNotLoaded  = errors.New("device not loaded")
	ErrNoVideoCodec     = errors.New("no video codec advertised by router")
	ErrTransportClosed  = errors.New("transport closed")
	ErrInvalidTransport = errors.New("invalid transport info received from server")
	ErrWrongDirection   = errors.New("operation not supported on this transport direction")
	ErrProducerClosed   = errors.New("producer closed")
	ErrConsumerClosed   = errors.New("consumer closed")
)
