package ingest

import (
	"context"
	"testing"
	"time"
)

func TestNewKafkaSource_DisabledMode(t *testing.T) {
	tests := []struct {
		name string
		cfg  *KafkaConfig
	}{
		{"nil config", nil},
		{"disabled", &KafkaConfig{Enabled: false, Brokers: []string{"localhost:9092"}}},
		{"no brokers", &KafkaConfig{Enabled: true, Brokers: []string{}}},
		{"empty brokers", &KafkaConfig{Enabled: true, Brokers: nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewKafkaSource(tt.cfg, NewBuffer())
			if s == nil {
				t.Fatal("expected non-nil source")
			}
			if s.enabled {
				t.Error("expected source to be disabled")
			}
			if s.reader != nil {
				t.Error("expected nil reader when disabled")
			}
		})
	}
}

func TestKafkaSource_RunDisabledReturns(t *testing.T) {
	s := NewKafkaSource(nil, NewBuffer())

	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled source must return immediately")
	}
}

func TestKafkaSource_CloseDisabled(t *testing.T) {
	s := NewKafkaSource(nil, NewBuffer())
	if err := s.Close(); err != nil {
		t.Errorf("expected no error closing disabled source, got %v", err)
	}
}
