package integration

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"quiz-room-service/internal/app"
	"quiz-room-service/internal/domain"
	infraredis "quiz-room-service/internal/infra/redis"
)

type inbox struct {
	ch chan domain.Message
}

func newInbox() *inbox { return &inbox{ch: make(chan domain.Message, 256)} }

func (i *inbox) Send(msg domain.Message) {
	select {
	case i.ch <- msg:
	default:
	}
}

func (i *inbox) await(t *testing.T, typ domain.MessageType) domain.Message {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case msg := <-i.ch:
			if msg.Type == typ {
				return msg
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", typ)
		}
	}
}

func TestQuizAgainstRedisDirectory(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	clock := clockwork.NewFakeClock()
	first := app.NewRoomService(infraredis.NewRoomStore(redisClient, 5*time.Minute), app.WithClock(clock))
	second := app.NewRoomService(infraredis.NewRoomStore(redisClient, 5*time.Minute), app.WithClock(clock))

	host := newInbox()
	room, err := first.Create(ctx, sampleQuiz(), host)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if n, err := redisClient.Exists(ctx, "quiz:room:"+room.Code()).Result(); err != nil || n != 1 {
		t.Fatalf("expected code reservation in redis, got n=%d err=%v", n, err)
	}

	// Another instance does not own the room.
	if _, _, err := second.Join(ctx, room.Code(), "Mallory", newInbox()); err != domain.ErrRoomNotFound {
		t.Fatalf("expected room not found on second instance, got %v", err)
	}

	alice := newInbox()
	_, aliceID, err := first.Join(ctx, room.Code(), "Alice", alice)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	_, bobID, err := first.Join(ctx, room.Code(), "Bob", newInbox())
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	room.Start()
	host.await(t, domain.MessageQuestion)
	room.SubmitAnswer(bobID, 2)
	room.SubmitAnswer(aliceID, 1)

	results := host.await(t, domain.MessageResults).Payload.(domain.ResultsPayload)
	if results.Scores["Alice"] != 1500 || results.Scores["Bob"] != 0 {
		t.Fatalf("unexpected scores %v", results.Scores)
	}

	room.Next()
	lb := alice.await(t, domain.MessageLeaderboard).Payload.(domain.LeaderboardPayload)
	if len(lb.Rankings) != 2 || lb.Rankings[0].Name != "Alice" {
		t.Fatalf("expected Alice leading, got %+v", lb.Rankings)
	}

	first.Close(ctx, room.Code())
	if n, _ := redisClient.Exists(ctx, "quiz:room:"+room.Code()).Result(); n != 0 {
		t.Fatalf("expected code reservation released")
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		Title: "Integration",
		Questions: []domain.Question{
			{
				Text:         "What is 2 + 2?",
				Choices:      []string{"3", "4", "5", "22"},
				CorrectIndex: 1,
				TimerSec:     20,
			},
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
