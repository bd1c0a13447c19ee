package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/storepos/internal/license"
	"github.com/storepos/internal/pos"
	"github.com/storepos/internal/session"
	"github.com/storepos/pkg/models"
)

// SessionCommand runs an interactive, line-driven point-of-sale session.
func SessionCommand() *cli.Command {
	return &cli.Command{
		Name:  "session",
		Usage: "Start an interactive point-of-sale session",
		Action: func(c *cli.Context) error {
			cfg, closer, err := bootstrap(c)
			if err != nil {
				return err
			}
			defer closer.Close()

			client := license.NewRemoteClient(cfg.LicenseClient())
			store := license.NewStore(client)
			gate := license.NewGate(store)
			ctrl := session.New(store, license.NewActivator(client, store), gate)
			defer ctrl.Close()

			data := pos.NewRemoteDataService(cfg.Data.ServiceURL, cfg.Data.Timeout)
			sh := newShell(ctrl, pos.NewService(data, gate), os.Stdout)
			return sh.run(c.Context, os.Stdin)
		},
	}
}

const shellHelp = `commands:
  continue                     leave the launch splash
  activate                     open the activation screen
  code CODE                    submit an activation code
  readonly                     leave the activation screen without activating
  login USER PASSWORD          sign in
  welcome [never]              dismiss the welcome overlay
  hide-banner                  hide the licence banner until next login
  products [QUERY]             list products
  lowstock                     list products below minimum stock
  add-product CODE PRICE STOCK NAME...
  sell CODE QTY                sell QTY units of a product
  summary                      today's sales summary
  logout
  state                        show the current screen
  quit`

// shell renders controller snapshots as text and maps input lines onto
// controller and module calls.
type shell struct {
	ctrl *session.Controller
	pos  *pos.Service
	now  func() time.Time

	mu       sync.Mutex
	out      io.Writer
	lastView session.View
}

func newShell(ctrl *session.Controller, svc *pos.Service, out io.Writer) *shell {
	return &shell{ctrl: ctrl, pos: svc, out: out, now: time.Now}
}

func (s *shell) run(ctx context.Context, in io.Reader) error {
	updates, unsubscribe := s.ctrl.Subscribe()
	if err := s.ctrl.Start(ctx); err != nil {
		unsubscribe()
		return err
	}
	s.render(s.ctrl.Snapshot())

	// Verifier-driven changes arrive here while the prompt waits for input.
	done := make(chan struct{})
	defer func() {
		unsubscribe()
		<-done
	}()
	go func() {
		defer close(done)
		for snap := range updates {
			s.mu.Lock()
			changed := snap.View != s.lastView
			s.mu.Unlock()
			if changed {
				s.render(snap)
			}
		}
	}()

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" {
			return nil
		}
		if err := s.exec(ctx, fields[0], fields[1:]); err != nil {
			s.printf("error: %v\n", err)
		}
		s.render(s.ctrl.Snapshot())
	}
	return scanner.Err()
}

func (s *shell) exec(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "help":
		s.printf("%s\n", shellHelp)
	case "state":
	case "continue":
		return s.ctrl.ContinueFromSplash()
	case "activate":
		return s.ctrl.GoToActivation()
	case "code":
		if s.ctrl.View() != session.ViewActivation {
			return fmt.Errorf("open the activation screen first")
		}
		res := s.ctrl.SubmitActivation(ctx, strings.Join(args, " "))
		s.printf("%s\n", res.Message)
	case "readonly":
		return s.ctrl.ContinueReadOnly()
	case "login":
		return s.login(ctx, args)
	case "welcome":
		return s.ctrl.DismissWelcome(ctx, len(args) > 0 && args[0] == "never")
	case "hide-banner":
		s.ctrl.DismissBanner()
	case "logout":
		return s.ctrl.Logout()
	case "products", "lowstock", "add-product", "sell", "summary":
		user := s.ctrl.User()
		if user == nil {
			return fmt.Errorf("log in first")
		}
		return s.module(ctx, *user, cmd, args)
	default:
		return fmt.Errorf("unknown command %q (try help)", cmd)
	}
	return nil
}

func (s *shell) login(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: login USER PASSWORD")
	}
	if s.ctrl.View() != session.ViewLogin {
		return fmt.Errorf("%w: not on the login screen", session.ErrInvalidTransition)
	}
	user, err := s.pos.Login(ctx, models.Credentials{Username: args[0], Password: args[1]})
	if err != nil {
		return err
	}
	return s.ctrl.Login(user)
}

func (s *shell) module(ctx context.Context, user models.User, cmd string, args []string) error {
	switch cmd {
	case "products":
		inv, err := s.pos.Inventory(user)
		if err != nil {
			return err
		}
		products, err := inv.ListProducts(ctx, pos.ProductFilter{Query: strings.Join(args, " ")})
		if err != nil {
			return err
		}
		s.printProducts(products)
	case "lowstock":
		rep, err := s.pos.Reports(user)
		if err != nil {
			return err
		}
		products, err := rep.LowStock(ctx)
		if err != nil {
			return err
		}
		s.printProducts(products)
	case "add-product":
		if len(args) < 4 {
			return fmt.Errorf("usage: add-product CODE PRICE STOCK NAME...")
		}
		price, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("bad price %q", args[1])
		}
		stock, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("bad stock %q", args[2])
		}
		inv, err := s.pos.Inventory(user)
		if err != nil {
			return err
		}
		p, err := inv.CreateProduct(ctx, models.Product{
			Code:  args[0],
			Name:  strings.Join(args[3:], " "),
			Price: price,
			Stock: stock,
		})
		if err != nil {
			return err
		}
		s.printf("added product %d %s\n", p.ID, p.Code)
	case "sell":
		if len(args) != 2 {
			return fmt.Errorf("usage: sell CODE QTY")
		}
		qty, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("bad quantity %q", args[1])
		}
		sales, err := s.pos.Sales(user)
		if err != nil {
			return err
		}
		p, err := sales.FindProduct(ctx, args[0])
		if err != nil {
			return err
		}
		sale, err := sales.RecordSale(ctx, models.Sale{
			Items:         []models.SaleItem{{ProductID: p.ID, Quantity: qty, UnitPrice: p.Price}},
			PaymentMethod: "cash",
		})
		if err != nil {
			return err
		}
		s.printf("sale %s total %.2f\n", sale.Folio, sale.Total)
	case "summary":
		rep, err := s.pos.Reports(user)
		if err != nil {
			return err
		}
		now := s.now()
		from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		sum, err := rep.Summary(ctx, from, from.AddDate(0, 0, 1))
		if err != nil {
			return err
		}
		s.printf("%d sales, %.2f total, %d returns, %.2f refunded\n", sum.SaleCount, sum.Total, sum.ReturnCount, sum.Refunded)
	}
	return nil
}

func (s *shell) printProducts(products []models.Product) {
	if len(products) == 0 {
		s.printf("no products\n")
		return
	}
	for _, p := range products {
		s.printf("%-12s %-30s %8.2f %5d\n", p.Code, p.Name, p.Price, p.Stock)
	}
}

func (s *shell) render(snap session.Snapshot) {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", snap.View)
	if snap.User != nil {
		fmt.Fprintf(&b, " %s (%s)", snap.User.Username, pos.Role(snap.User.RoleID))
	}
	if snap.ReadOnly {
		b.WriteString(" read-only")
	}
	b.WriteString("\n")
	switch snap.View {
	case session.ViewSplash:
		fmt.Fprintf(&b, "  %s\n  %s\n  (continue: %s)\n", snap.SplashContent.Title, snap.SplashContent.Message, snap.SplashContent.ContinueLabel)
	case session.ViewActivation:
		b.WriteString("  enter an activation code with: code CODE\n")
	case session.ViewApp:
		if snap.Banner.Visible {
			fmt.Fprintf(&b, "  ! %s\n", snap.Banner.Message)
		}
		if snap.WelcomeOverlay {
			b.WriteString("  Welcome! Dismiss with: welcome [never]\n")
		}
		if snap.User != nil {
			mods := make([]string, 0, len(pos.Modules))
			for _, m := range pos.AllowedModules(pos.Role(snap.User.RoleID)) {
				mods = append(mods, string(m))
			}
			fmt.Fprintf(&b, "  modules: %s\n", strings.Join(mods, ", "))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastView = snap.View
	io.WriteString(s.out, b.String())
}

func (s *shell) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}
