package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/tile-duel/internal/domain"
)

// ProgressEvent mirrors the consumer's wire format for board-sync events
type ProgressEvent struct {
	MatchID       string `json:"match_id"`
	PlayerNumber  int    `json:"player_number"`
	Board         []int  `json:"board"`
	LastCorrectAt *int64 `json:"last_correct_at,omitempty"`
}

// simPlayer walks a scrambled board toward the solved state one cell at a
// time, roughly the shape of real progress without simulating actual swaps.
type simPlayer struct {
	slot  int
	board []int
}

func newSimPlayer(slot int, seed string, rows, cols, k int) *simPlayer {
	return &simPlayer{
		slot:  slot,
		board: domain.Scramble(seed, rows, cols, k),
	}
}

// step fixes one misplaced cell by swapping its correct value into place.
// Returns true while the board is still unsolved.
func (p *simPlayer) step() bool {
	for i, v := range p.board {
		if v == i {
			continue
		}
		for j := i + 1; j < len(p.board); j++ {
			if p.board[j] == i {
				p.board[i], p.board[j] = p.board[j], p.board[i]
				break
			}
		}
		return true
	}
	return false
}

func main() {
	// Command line flags
	brokers := flag.String("brokers", "localhost:9094", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "match-progress", "Kafka topic")
	matchID := flag.String("match", "", "Match ID to simulate (required)")
	seed := flag.String("seed", "", "Scramble seed of the match (required)")
	rows := flag.Int("rows", 5, "Board rows")
	cols := flag.Int("cols", 5, "Board columns")
	k := flag.Int("k", 512, "Scramble swap count")
	rate := flag.Int("rate", 2, "Board updates per second per player")
	flag.Parse()

	if *matchID == "" || *seed == "" {
		fmt.Fprintln(os.Stderr, "both -match and -seed are required")
		flag.Usage()
		os.Exit(2)
	}

	brokerList := strings.Split(*brokers, ",")

	fmt.Printf("Simulating match %s (%dx%d, k=%d) on topic %s\n", *matchID, *rows, *cols, *k, *topic)

	// Configure Sarama producer
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 100 * time.Millisecond
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true

	// Create producer
	producer, err := sarama.NewAsyncProducer(brokerList, config)
	if err != nil {
		log.Fatalf("Failed to create producer: %v", err)
	}
	defer producer.Close()

	// Handle producer errors and successes
	var successCount, errorCount int64
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for range producer.Successes() {
			atomic.AddInt64(&successCount, 1)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for err := range producer.Errors() {
			atomic.AddInt64(&errorCount, 1)
			log.Printf("Producer error: %v", err)
		}
	}()

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})

	// Send message helper; events for one match share a key so they land on
	// one partition and stay ordered.
	sendEvent := func(event ProgressEvent) {
		data, err := json.Marshal(event)
		if err != nil {
			log.Printf("Failed to marshal event: %v", err)
			return
		}

		msg := &sarama.ProducerMessage{
			Topic: *topic,
			Key:   sarama.StringEncoder(event.MatchID),
			Value: sarama.ByteEncoder(data),
		}

		select {
		case producer.Input() <- msg:
		case <-done:
			return
		}
	}

	players := []*simPlayer{
		newSimPlayer(domain.SlotP1, *seed, *rows, *cols, *k),
		newSimPlayer(domain.SlotP2, *seed, *rows, *cols, *k),
	}

	interval := time.Second / time.Duration(*rate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	fmt.Println("Press Ctrl+C to stop")

	shutdown := func() {
		close(done)
		producer.AsyncClose()
		wg.Wait()
		fmt.Printf("\nDone. Sent: %d, Errors: %d\n", atomic.LoadInt64(&successCount), atomic.LoadInt64(&errorCount))
	}

	for {
		select {
		case <-sigChan:
			fmt.Println("\nShutting down...")
			shutdown()
			return

		case <-ticker.C:
			solvedCount := 0
			for _, p := range players {
				// Slower player skips some ticks to keep the race uneven.
				if p.slot == domain.SlotP2 && rand.Intn(3) == 0 {
					continue
				}
				progressing := p.step()
				now := time.Now().UnixMilli()
				sendEvent(ProgressEvent{
					MatchID:       *matchID,
					PlayerNumber:  p.slot,
					Board:         append([]int(nil), p.board...),
					LastCorrectAt: &now,
				})
				if !progressing {
					solvedCount++
				}
			}
			if solvedCount == len(players) {
				fmt.Println("\nBoth boards solved")
				shutdown()
				return
			}
		}
	}
}
