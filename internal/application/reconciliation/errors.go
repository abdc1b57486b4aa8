package reconciliation

import "errors"

// ErrLockNotObtained otro lote masivo del mismo negocio tiene el candado.
var ErrLockNotObtained = errors.New("candado de lote ocupado")
