package main

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/adampresley/adamgokit/retrier"
	"github.com/adampresley/phototourist/cmd/tourist/internal/configuration"
	"github.com/adampresley/phototourist/pkg/datastore"
	"github.com/adampresley/phototourist/pkg/fetcher"
	"github.com/adampresley/phototourist/pkg/flickr"
	"github.com/adampresley/phototourist/pkg/services"
	_ "github.com/glebarez/sqlite"
	"github.com/rfberaldo/sqlz"
)

/*
 * Dev harness. The product surface is the library under pkg; this
 * just wires it the way an embedding app would and exercises a full
 * marker -> album -> fetch -> observe round trip.
 */

var (
	Version string = "development"
	appName string = "phototourist"

	config configuration.Config

	/* Services */
	db            *sqlz.DB
	store         *datastore.DataStore
	imageFetcher  fetcher.ImageFetcher
	albumService  services.AlbumServicer
	markerService services.MarkerServicer
	photoService  services.PhotoServicer
)

func main() {
	var (
		err error
	)

	config = configuration.LoadConfig()
	setupLogger(&config, Version)

	slog.Info("configuration loaded",
		slog.String("app", appName),
		slog.String("version", Version),
		slog.String("loglevel", config.LogLevel),
		slog.String("flickrApiUrl", config.FlickrApiUrl),
	)

	slog.Debug("setting up...")

	shutdownCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	/*
	 * Setup the database and datastore
	 */
	sqlz.Register("sqlite", sqlz.BindQuestion)

	retrier.Retry(func() error {
		if db, err = sqlz.Connect("sqlite", config.DSN); err != nil {
			slog.Error("failed to connect to database. trying again", "error", err)
			return err
		}

		return nil
	})

	if err != nil {
		panic(err)
	}

	if err = datastore.MigrateDatabase(db); err != nil {
		panic(err)
	}

	if store, err = datastore.NewDataStore(datastore.DataStoreConfig{DB: db}); err != nil {
		panic(err)
	}

	defer store.Close()

	/*
	 * Setup services
	 */
	errorCallback := func(err error, retry func()) {
		slog.Error("pipeline error", "error", err, "canRetry", retry != nil)
	}

	flickrClient := flickr.NewClient(flickr.ClientConfig{
		ApiURL:      config.FlickrApiUrl,
		DownloadURL: config.FlickrDownloadUrl,
		ApiKey:      config.FlickrApiKey,
	})

	imageFetcher = fetcher.NewImageFetcherService(fetcher.ImageFetcherConfig{
		Searcher:      flickrClient,
		MaxWorkers:    config.MaxFetchWorkers,
		ErrorCallback: errorCallback,
		ShutdownCtx:   shutdownCtx,
	})

	albumService = services.NewAlbumService(services.AlbumServiceConfig{
		Store:         store,
		Fetcher:       imageFetcher,
		ErrorCallback: errorCallback,
	})

	markerService = services.NewMarkerService(services.MarkerServiceConfig{
		Store:        store,
		AlbumService: albumService,
	})

	photoService = services.NewPhotoService(services.PhotoServiceConfig{
		Store: store,
	})

	/*
	 * Drop a demo marker and watch the cache converge.
	 */
	marker, err := markerService.Create(51.5072, -0.1276)

	if err != nil {
		slog.Error("error creating marker", "error", err)
		os.Exit(1)
	}

	albums := albumService.GetAlbumList(marker.ID)

	for _, album := range albums {
		observer := store.Observe(datastore.PhotosForAlbumQuery{AlbumID: album.ID}, func(changes []datastore.RowChange) {
			for _, change := range changes {
				slog.Info("photo scope changed", "albumID", album.ID, "op", change.Op.String(), "position", change.Position, "newPosition", change.NewPosition)
			}
		})

		defer observer.Stop()

		if err = albumService.Refresh(album.ID); err != nil {
			slog.Error("error refreshing album", "albumID", album.ID, "error", err)
			continue
		}

		photos := photoService.GetPhotoList(album.ID)
		slog.Info("album populated", "albumID", album.ID, "name", album.Name, "photos", len(photos))
	}

	slog.Info("done")
}

func setupLogger(config *configuration.Config, version string) {
	var (
		level slog.Level
	)

	switch strings.ToLower(config.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	if version == "development" {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
		return
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}
