package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-docs-client/auth"
	"github.com/jrsteele09/go-docs-client/client"
	"github.com/jrsteele09/go-docs-client/credentials"
	"github.com/jrsteele09/go-docs-client/credentials/filerepo"
	"github.com/jrsteele09/go-docs-client/credentials/redisrepo"
	"github.com/jrsteele09/go-docs-client/documents"
	"github.com/jrsteele09/go-docs-client/internal/config"
	"github.com/jrsteele09/go-docs-client/search"
	"github.com/jrsteele09/go-docs-client/transport"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %s\n", err)
	}
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	_ = godotenv.Load()
	c := config.New()
	displayAppname(c.GetAppName())

	if len(os.Args) < 2 {
		usage()
		return nil
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	api, manager, broadcaster, err := wire(c, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go broadcaster.Watch(ctx, c.GetWatchInterval(), manager)

	sub := broadcaster.Subscribe(func(authenticated bool, user *credentials.User) {
		if authenticated {
			logger.Info().Str("user", user.Email).Msg("authenticated")
		} else {
			logger.Info().Msg("signed out")
		}
	})
	defer sub.Unsubscribe()

	return dispatch(ctx, os.Args[1], os.Args[2:], api, manager)
}

func wire(c config.Config, logger zerolog.Logger) (*client.Client, *auth.Manager, *auth.Broadcaster, error) {
	var repo credentials.Repo
	if addr := c.GetRedisAddr(); addr != "" {
		repo = redisrepo.New(redis.NewClient(&redis.Options{Addr: addr}))
	} else {
		repo = filerepo.New(c.GetCredentialsFile())
	}

	store, err := credentials.NewStore(repo, credentials.WithLogger(logger))
	if err != nil {
		return nil, nil, nil, err
	}
	if err := store.Load(context.Background()); err != nil {
		return nil, nil, nil, err
	}

	t, err := transport.New(c.GetBaseURL(),
		transport.WithTokenSource(store),
		transport.WithLogger(logger),
		transport.WithDiagnostics(c.GetEnv() != "PROD"),
		transport.WithTimeout(c.GetRequestTimeout()),
	)
	if err != nil {
		return nil, nil, nil, err
	}

	broadcaster := auth.NewBroadcaster(store, auth.WithBroadcasterLogger(logger))
	manager, err := auth.NewManager(t, store, broadcaster,
		auth.WithLookahead(c.GetRefreshLookahead()),
		auth.WithManagerLogger(logger),
	)
	if err != nil {
		return nil, nil, nil, err
	}

	api, err := client.New(t, manager, broadcaster, client.WithLogger(logger))
	if err != nil {
		return nil, nil, nil, err
	}
	return api, manager, broadcaster, nil
}

func dispatch(ctx context.Context, command string, args []string, api *client.Client, manager *auth.Manager) error {
	switch command {
	case "login":
		return cmdLogin(ctx, manager, args)
	case "logout":
		return manager.Logout(ctx)
	case "whoami":
		return cmdWhoami(ctx, manager)
	case "list":
		return cmdList(ctx, api)
	case "recent":
		return cmdRecent(ctx, api)
	case "search":
		return cmdSearch(ctx, api, args)
	case "download":
		return cmdDownload(ctx, api, args)
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func cmdLogin(ctx context.Context, manager *auth.Manager, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: docsctl login <email>")
	}

	fmt.Print("Password: ")
	reader := bufio.NewReader(os.Stdin)
	password, err := reader.ReadString('\n')
	if err != nil {
		return err
	}

	user, err := manager.Login(ctx, args[0], strings.TrimSpace(password))
	if err != nil {
		return err
	}
	fmt.Printf("Logged in as %s (%s)\n", user.FullName, user.Email)
	return nil
}

func cmdWhoami(ctx context.Context, manager *auth.Manager) error {
	user, err := manager.FetchProfile(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s <%s>  uploads=%d verified=%t\n", user.FullName, user.Email, user.DocumentsUploaded, user.IsVerified)
	return nil
}

func cmdList(ctx context.Context, api *client.Client) error {
	page, err := documents.NewService(api).List(ctx, documents.ListParams{PageSize: 20})
	if err != nil {
		return err
	}
	fmt.Printf("%d documents\n", page.Count)
	printDocuments(page.Results)
	return nil
}

func cmdRecent(ctx context.Context, api *client.Client) error {
	docs, err := documents.NewService(api).Recent(ctx)
	if err != nil {
		return err
	}
	printDocuments(docs)
	return nil
}

func cmdSearch(ctx context.Context, api *client.Client, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: docsctl search <query>")
	}

	page, err := search.NewService(api).Search(ctx, search.Params{Query: strings.Join(args, " ")})
	if err != nil {
		return err
	}
	for _, result := range page.Results {
		fmt.Printf("%6.2f  [%d] %s\n", result.Score, result.Document.ID, result.Document.Title)
	}
	return nil
}

func cmdDownload(ctx context.Context, api *client.Client, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: docsctl download <id> <destination>")
	}

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid document id %q", args[0])
	}

	dest, err := os.Create(args[1])
	if err != nil {
		return err
	}
	defer dest.Close()

	started := time.Now()
	if err := documents.NewService(api).Download(ctx, id, dest); err != nil {
		return err
	}
	fmt.Printf("Saved %s in %s\n", args[1], time.Since(started).Round(time.Millisecond))
	return nil
}

func printDocuments(docs []documents.Document) {
	for _, doc := range docs {
		fmt.Printf("[%d] %-40s %-10s %d bytes\n", doc.ID, doc.Title, doc.Status, doc.FileSize)
	}
}

func usage() {
	fmt.Println("usage: docsctl <login|logout|whoami|list|recent|search|download> [args]")
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
