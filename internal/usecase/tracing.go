package usecase

import "go.opentelemetry.io/otel"

var tracer = otel.Tracer("github.com/SoyunJu/LogCollector-sub000/internal/usecase")
