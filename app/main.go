package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/hashicorp/go-multierror"
	"github.com/jessevdk/go-flags"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/umputun/akismet/lib/akismet"
	"github.com/umputun/akismet/lib/spamcheck"
)

type options struct {
	Key     string        `long:"key" env:"AKISMET_KEY" description:"akismet api key" required:"true"`
	Blog    string        `long:"blog" env:"AKISMET_BLOG" description:"blog url associated with the key" required:"true"`
	Timeout time.Duration `long:"timeout" env:"TIMEOUT" default:"0s" description:"http client timeout, none if 0"`

	Proxy struct {
		Host     string `long:"host" env:"HOST" description:"proxy host, direct connection if not set"`
		Port     int    `long:"port" env:"PORT" default:"8080" description:"proxy port"`
		User     string `long:"user" env:"USER" description:"proxy user"`
		Password string `long:"password" env:"PASSWORD" description:"proxy password"`
	} `group:"proxy" namespace:"proxy" env-namespace:"PROXY"`

	Comment struct {
		IP        string            `long:"ip" env:"IP" description:"commenter ip"`
		UserAgent string            `long:"agent" env:"AGENT" description:"commenter user agent"`
		Referrer  string            `long:"referrer" env:"REFERRER" description:"http referrer"`
		Permalink string            `long:"permalink" env:"PERMALINK" description:"url of the commented entry"`
		Type      string            `long:"type" env:"TYPE" description:"comment type, i.e. comment, trackback, pingback"`
		Author    string            `long:"author" env:"AUTHOR" description:"comment author"`
		Email     string            `long:"email" env:"EMAIL" description:"comment author email"`
		URL       string            `long:"url" env:"URL" description:"comment author url"`
		Content   string            `long:"content" env:"CONTENT" description:"comment content"`
		Extra     map[string]string `long:"extra" env:"EXTRA" env-delim:"," description:"extra key:value pairs"`
	} `group:"comment" namespace:"comment" env-namespace:"COMMENT"`

	Mode    string `long:"mode" env:"MODE" choice:"check" choice:"spam" choice:"ham" default:"check" description:"operation for comments"`
	Samples bool   `long:"samples" env:"SAMPLES" description:"run built-in sample comments instead of the comment options"`

	Logger struct {
		Enabled    bool   `long:"enabled" env:"ENABLED" description:"enable rotated results log"`
		FileName   string `long:"file" env:"FILE" default:"akismet.log" description:"location of results log"`
		MaxSize    int    `long:"max-size" env:"MAX_SIZE" default:"100" description:"maximum size in megabytes before it gets rotated"`
		MaxBackups int    `long:"max-backups" env:"MAX_BACKUPS" default:"10" description:"maximum number of old log files to retain"`
		MaxAge     int    `long:"max-age" env:"MAX_AGE" default:"0" description:"maximum days to retain old log files, no limit if 0"`
		NoCompress bool   `long:"no-compress" env:"NO_COMPRESS" description:"don't gzip rotated log files"`
	} `group:"log" namespace:"log" env-namespace:"LOG"`

	Dbg bool `long:"dbg" env:"DEBUG" description:"debug mode"`
}

var revision = "local"

func main() {
	fmt.Printf("akismet %s\n", revision)
	var opts options
	p := flags.NewParser(&opts, flags.PrintErrors|flags.PassDoubleDash|flags.HelpFlag)
	if _, err := p.Parse(); err != nil {
		var flagsErr *flags.Error
		if !errors.As(err, &flagsErr) || flagsErr.Type != flags.ErrHelp {
			log.Printf("[ERROR] cli error: %v", err)
		}
		os.Exit(2)
	}

	setupLog(opts.Dbg, opts.Key, opts.Proxy.Password)
	log.Printf("[DEBUG] options: %+v", opts)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		// catch signal and invoke graceful termination
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop
		log.Printf("[WARN] interrupt signal")
		cancel()
	}()

	if err := execute(ctx, opts); err != nil {
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}
}

func execute(ctx context.Context, opts options) error {
	client, err := makeClient(opts)
	if err != nil {
		return fmt.Errorf("can't make akismet client, %w", err)
	}

	resultsWr, err := makeResultsLogWriter(opts)
	if err != nil {
		return fmt.Errorf("can't make results log writer, %w", err)
	}
	defer resultsWr.Close()
	saveResult := makeResultsLogger(resultsWr)

	verify := client.VerifyKey(ctx)
	saveResult(verify, akismet.Comment{})
	printResult("api key verified", verify)
	if !verify.Verdict {
		log.Printf("[WARN] api key %s not verified for %s", opts.Key, opts.Blog)
	}
	responses := []spamcheck.Response{verify.Response()}

	comments := makeComments(opts)
	if len(comments) == 0 {
		log.Printf("[INFO] no comments to %s, verification only", opts.Mode)
	}
	for i, cm := range comments {
		if ctx.Err() != nil {
			return fmt.Errorf("interrupted, %w", ctx.Err())
		}
		res := runMode(ctx, client, opts.Mode, cm)
		saveResult(res, cm)
		printResult(fmt.Sprintf("%s %d", opts.Mode, i+1), res)
		responses = append(responses, res.Response())
	}
	log.Printf("[DEBUG] results: %s", spamcheck.ChecksToString(responses))
	fmt.Printf("last http status: %d\n", client.LastStatus())
	return nil
}

func makeClient(opts options) (*akismet.Client, error) {
	client, err := akismet.New(opts.Key, opts.Blog)
	if err != nil {
		return nil, err
	}
	client.WithTimeout(opts.Timeout)

	if opts.Proxy.User != "" {
		if err := client.SetProxyAuth(opts.Proxy.User, opts.Proxy.Password); err != nil {
			return nil, fmt.Errorf("can't set proxy auth, %w", err)
		}
	}
	if opts.Proxy.Host != "" {
		if err := client.SetProxy(opts.Proxy.Host, opts.Proxy.Port); err != nil {
			return nil, fmt.Errorf("can't set proxy, %w", err)
		}
		log.Printf("[INFO] using proxy %s:%d", opts.Proxy.Host, opts.Proxy.Port)
	}
	return client, nil
}

// makeComments returns sample comments if requested, otherwise the comment from options.
// Empty comment options mean no comments at all, any single field set makes a comment.
func makeComments(opts options) []akismet.Comment {
	if opts.Samples {
		return sampleComments()
	}
	cm := akismet.Comment{
		UserIP:      opts.Comment.IP,
		UserAgent:   opts.Comment.UserAgent,
		Referrer:    opts.Comment.Referrer,
		Permalink:   opts.Comment.Permalink,
		Type:        opts.Comment.Type,
		Author:      opts.Comment.Author,
		AuthorEmail: opts.Comment.Email,
		AuthorURL:   opts.Comment.URL,
		Content:     opts.Comment.Content,
		Extra:       opts.Comment.Extra,
	}
	if isEmptyComment(cm) {
		return nil
	}
	return []akismet.Comment{cm}
}

func isEmptyComment(cm akismet.Comment) bool {
	for _, v := range []string{cm.UserIP, cm.UserAgent, cm.Referrer, cm.Permalink, cm.Type,
		cm.Author, cm.AuthorEmail, cm.AuthorURL, cm.Content} {
		if v != "" {
			return false
		}
	}
	return len(cm.Extra) == 0
}

func runMode(ctx context.Context, client *akismet.Client, mode string, cm akismet.Comment) akismet.Result {
	switch mode {
	case "spam":
		return client.SubmitSpam(ctx, cm)
	case "ham":
		return client.SubmitHam(ctx, cm)
	default:
		return client.CommentCheck(ctx, cm)
	}
}

// printResult prints verdict of a single call to stdout, spam and rejected keys in red
func printResult(title string, res akismet.Result) {
	verdict := color.New(color.FgGreen).Sprint(res.Verdict)
	if (res.Call == "comment-check" && res.Verdict) || (res.Call == "verify-key" && !res.Verdict) {
		verdict = color.New(color.FgHiRed).Sprint(res.Verdict)
	}
	switch res.Call {
	case "submit-spam", "submit-ham":
		fmt.Printf("%s: reported, status %d\n", title, res.Status)
	default:
		fmt.Printf("%s: %s, status %d\n", title, verdict, res.Status)
	}
}

// makeResultsLogger creates results logger to keep a record of api calls
// it writes json lines to the provided writer
func makeResultsLogger(wr io.Writer) func(res akismet.Result, cm akismet.Comment) {
	return func(res akismet.Result, cm akismet.Comment) {
		m := struct {
			TimeStamp string `json:"ts"`
			Call      string `json:"call"`
			Verdict   bool   `json:"verdict"`
			Status    int    `json:"status"`
			Details   string `json:"details"`
			UserIP    string `json:"user_ip,omitempty"`
			Author    string `json:"author,omitempty"`
			Content   string `json:"content,omitempty"`
		}{
			TimeStamp: time.Now().In(time.Local).Format(time.RFC3339),
			Call:      res.Call,
			Verdict:   res.Verdict,
			Status:    res.Status,
			Details:   res.Response().Details,
			UserIP:    cm.UserIP,
			Author:    cm.Author,
			Content:   strings.TrimSpace(strings.ReplaceAll(cm.Content, "\n", " ")),
		}
		line, err := json.Marshal(&m)
		if err != nil {
			log.Printf("[WARN] can't marshal json, %v", err)
			return
		}
		if _, err := wr.Write(append(line, '\n')); err != nil {
			log.Printf("[WARN] can't write to log, %v", err)
		}
	}
}

// makeResultsLogWriter makes rotated results log writer, or a discarding one if the log is disabled.
// Size limits are in megabytes and age in days, as lumberjack takes them.
func makeResultsLogWriter(opts options) (io.WriteCloser, error) {
	if !opts.Logger.Enabled {
		return nopWriteCloser{io.Discard}, nil
	}

	var errs error
	if opts.Logger.FileName == "" {
		errs = multierror.Append(errs, errors.New("empty results log file name"))
	}
	if opts.Logger.MaxSize <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("results log max size %dM, should be positive", opts.Logger.MaxSize))
	}
	if opts.Logger.MaxBackups < 0 {
		errs = multierror.Append(errs, fmt.Errorf("negative results log max backups %d", opts.Logger.MaxBackups))
	}
	if opts.Logger.MaxAge < 0 {
		errs = multierror.Append(errs, fmt.Errorf("negative results log max age %d", opts.Logger.MaxAge))
	}
	if errs != nil {
		return nil, errs
	}

	log.Printf("[INFO] results log %s, rotate at %dM, keep %d files for %d days (0 for no limit)",
		opts.Logger.FileName, opts.Logger.MaxSize, opts.Logger.MaxBackups, opts.Logger.MaxAge)
	return &lumberjack.Logger{
		Filename:   opts.Logger.FileName,
		MaxSize:    opts.Logger.MaxSize,
		MaxBackups: opts.Logger.MaxBackups,
		MaxAge:     opts.Logger.MaxAge,
		Compress:   !opts.Logger.NoCompress,
		LocalTime:  true,
	}, nil
}

type nopWriteCloser struct{ io.Writer }

func (n nopWriteCloser) Close() error { return nil }

func setupLog(dbg bool, secrets ...string) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.CallerFile, lgr.CallerFunc, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))

	nonEmpty := []string{}
	for _, s := range secrets {
		if s != "" {
			nonEmpty = append(nonEmpty, s)
		}
	}
	if len(nonEmpty) > 0 {
		logOpts = append(logOpts, lgr.Secret(nonEmpty...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
