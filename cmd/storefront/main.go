package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/rtwroastery/roastery-backend/internal/blenddraft"
	"github.com/rtwroastery/roastery-backend/internal/blends"
	"github.com/rtwroastery/roastery-backend/internal/cart"
	"github.com/rtwroastery/roastery-backend/internal/checkout"
	"github.com/rtwroastery/roastery-backend/internal/storefront"
	"github.com/rtwroastery/roastery-backend/pkg/config"
	"github.com/rtwroastery/roastery-backend/pkg/db"
	"github.com/rtwroastery/roastery-backend/pkg/enums"
	"github.com/rtwroastery/roastery-backend/pkg/logger"
	"github.com/rtwroastery/roastery-backend/pkg/money"
	"github.com/rtwroastery/roastery-backend/pkg/types"
)

const usage = `usage: storefront <command> [args]

commands:
  login --email <email> --password <password>
  register --email <email> --password <password> --name <name>
  logout
  whoami
  products
  rates
  blend show | options | set <field> <value> | next | back | goto <step> | save
  cart list | add --product <id> | --blend <id> [--qty n] | remove <item-id>
  checkout --address <street> --city <city> --state <state> --zip <zip> --rate <rate-id>
  verify --session <session-id>

blend fields: method, origin, roast, grind, name, quantity, components (Origin=pct,...)`

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.LoadStorefront()
	if err != nil {
		exit("load config: %v", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "storefront",
		Level:       logger.ParseLevel(cfg.LogLevel),
		Output:      os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	device, err := db.OpenSQLite(ctx, cfg.DevicePath, logg, storefront.DeviceModels...)
	if err != nil {
		exit("open device database: %v", err)
	}
	defer func() { _ = device.Close() }()

	app, err := storefront.NewApp(ctx, storefront.AppParams{
		Config: cfg,
		DB:     device.DB(),
		Logger: logg,
		OnAutoSave: func(blend *blends.BlendDTO, err error) {
			if err != nil {
				fmt.Printf("saving your blend after sign-in failed: %v\n", err)
				return
			}
			fmt.Printf("saved blend %q (%s) and added it to your cart\n", blend.Name, blend.ID)
		},
		OnTransition: func(_, next checkout.Snapshot) {
			logg.Debug(logg.WithField(ctx, "state", string(next.State)), "storefront.checkout_transition")
		},
	})
	if err != nil {
		exit("start storefront: %v", err)
	}
	defer app.Close()

	if err := app.Start(ctx); err != nil {
		exit("restore session: %v", err)
	}

	cli := &cli{app: app, cfg: cfg, out: os.Stdout}
	if err := cli.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		exit("%s: %v", os.Args[1], err)
	}
}

type cli struct {
	app *storefront.App
	cfg *config.StorefrontConfig
	out io.Writer
}

func (c *cli) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "login":
		return c.login(ctx, args)
	case "register":
		return c.register(ctx, args)
	case "logout":
		if err := c.app.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "signed out")
		return nil
	case "whoami":
		return c.whoami()
	case "products":
		return c.products(ctx)
	case "rates":
		return c.rates(ctx)
	case "blend":
		return c.blend(ctx, args)
	case "cart":
		return c.cart(ctx, args)
	case "checkout":
		return c.checkout(ctx, args)
	case "verify":
		return c.verify(ctx, args)
	case "help", "-h", "--help":
		fmt.Fprintln(c.out, usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q\n\n%s", cmd, usage)
	}
}

func (c *cli) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	profile, err := c.app.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "signed in as %s\n", profile.Email)
	return nil
}

func (c *cli) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	name := fs.String("name", "", "display name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	profile, err := c.app.Register(ctx, *email, *password, *name)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "welcome, %s\n", profile.Name)
	return nil
}

func (c *cli) whoami() error {
	current := c.app.Identity.Current()
	if !current.Authenticated() {
		fmt.Fprintln(c.out, "anonymous")
		return nil
	}
	fmt.Fprintf(c.out, "%s <%s> role=%s\n", current.Profile.Name, current.Profile.Email, current.Profile.Role)
	return nil
}

func (c *cli) products(ctx context.Context) error {
	products, err := c.app.Client.ListProducts(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tORIGIN\tROAST\tPRICE")
	for _, p := range products {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Origin, p.RoastLevel, money.Format(p.Price))
	}
	return w.Flush()
}

func (c *cli) rates(ctx context.Context) error {
	rates, err := c.app.Client.ListShippingRates(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tREGION\tRATE\tDESCRIPTION")
	for _, r := range rates {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, r.Region, money.Format(r.Rate), r.Description)
	}
	return w.Flush()
}

func (c *cli) blend(ctx context.Context, args []string) error {
	if len(args) == 0 {
		args = []string{"show"}
	}
	var action blenddraft.Action
	switch args[0] {
	case "show":
		c.printDraft(c.app.Drafts.Draft())
		return nil
	case "options":
		c.printOptions()
		return nil
	case "next":
		action = blenddraft.Next()
	case "back":
		action = blenddraft.Back()
	case "goto":
		if len(args) != 2 {
			return errors.New("usage: blend goto <step>")
		}
		step, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid step %q", args[1])
		}
		action = blenddraft.GoTo(step)
	case "set":
		if len(args) < 3 {
			return errors.New("usage: blend set <field> <value>")
		}
		parsed, err := draftAction(args[1], strings.Join(args[2:], " "))
		if err != nil {
			return err
		}
		action = parsed
	case "save":
		blend, err := c.app.Drafts.Save(ctx)
		if errors.Is(err, blenddraft.ErrIdentityRequired) {
			fmt.Fprintln(c.out, "sign in to save this blend; it will be saved as soon as you log in")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "saved blend %q (%s) and added it to your cart\n", blend.Name, blend.ID)
		return nil
	default:
		return fmt.Errorf("unknown blend command %q", args[0])
	}

	draft, err := c.app.Drafts.Dispatch(ctx, action)
	if err != nil {
		return err
	}
	c.printDraft(draft)
	return nil
}

func draftAction(field, value string) (blenddraft.Action, error) {
	switch field {
	case "method":
		return blenddraft.SetBrewingMethod(value), nil
	case "origin":
		return blenddraft.SetOrigin(value), nil
	case "roast":
		return blenddraft.SetRoastLevel(value), nil
	case "grind":
		return blenddraft.SetGrindSize(value), nil
	case "name":
		return blenddraft.SetName(value), nil
	case "quantity":
		grams, err := strconv.Atoi(value)
		if err != nil {
			return blenddraft.Action{}, fmt.Errorf("invalid quantity %q", value)
		}
		return blenddraft.SetQuantity(grams), nil
	case "components":
		components, err := parseComponents(value)
		if err != nil {
			return blenddraft.Action{}, err
		}
		return blenddraft.SetComponents(components), nil
	default:
		return blenddraft.Action{}, fmt.Errorf("unknown blend field %q", field)
	}
}

// parseComponents reads "Colombia=60,Ethiopia=40".
func parseComponents(value string) (types.BlendComponents, error) {
	components := types.BlendComponents{}
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		origin, pct, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("invalid component %q, want Origin=percent", part)
		}
		share, err := strconv.Atoi(strings.TrimSpace(pct))
		if err != nil {
			return nil, fmt.Errorf("invalid percentage in %q", part)
		}
		components[strings.TrimSpace(origin)] = share
	}
	return components, nil
}

func (c *cli) printOptions() {
	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "method\t%s\n", joinValues(enums.BrewingMethods()))
	fmt.Fprintf(w, "origin\t%s\n", joinValues(enums.Origins()))
	fmt.Fprintf(w, "roast\t%s\n", joinValues(enums.RoastLevels()))
	fmt.Fprintf(w, "grind\t%s\n", joinValues(enums.GrindSizes()))
	_ = w.Flush()
}

func joinValues[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, " | ")
}

func (c *cli) printDraft(d blenddraft.Draft) {
	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "step\t%d/%d\n", d.Step, blenddraft.LastStep)
	fmt.Fprintf(w, "method\t%s\n", d.BrewingMethod)
	fmt.Fprintf(w, "origin\t%s\n", d.Origin)
	fmt.Fprintf(w, "roast\t%s\n", d.RoastLevel)
	fmt.Fprintf(w, "grind\t%s\n", d.GrindSize)
	if len(d.BlendComponents) > 0 {
		parts := make([]string, 0, len(d.BlendComponents))
		for origin, pct := range d.BlendComponents {
			parts = append(parts, fmt.Sprintf("%s=%d%%", origin, pct))
		}
		fmt.Fprintf(w, "components\t%s\n", strings.Join(parts, ", "))
	}
	fmt.Fprintf(w, "quantity\t%dg\n", d.QuantityGrams)
	fmt.Fprintf(w, "name\t%s\n", d.Name)
	_ = w.Flush()
	if c.app.Drafts.SavePending() {
		fmt.Fprintln(c.out, "(save pending sign-in)")
	}
}

func (c *cli) cart(ctx context.Context, args []string) error {
	if len(args) == 0 {
		args = []string{"list"}
	}
	switch args[0] {
	case "list":
		return c.cartList(ctx)
	case "add":
		fs := flag.NewFlagSet("cart add", flag.ContinueOnError)
		product := fs.String("product", "", "product id")
		blend := fs.String("blend", "", "custom blend id")
		qty := fs.Int("qty", 1, "quantity")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		ref, err := lineRef(*product, *blend, *qty)
		if err != nil {
			return err
		}
		added, err := c.app.Cart.Add(ctx, ref)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "added line %s\n", added.ID)
		return nil
	case "remove":
		if len(args) != 2 {
			return errors.New("usage: cart remove <item-id>")
		}
		id, err := uuid.Parse(args[1])
		if err != nil {
			return fmt.Errorf("invalid item id %q", args[1])
		}
		if err := c.app.Cart.Remove(ctx, id); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "removed")
		return nil
	default:
		return fmt.Errorf("unknown cart command %q", args[0])
	}
}

func lineRef(product, blend string, qty int) (cart.LineItemRef, error) {
	if (product == "") == (blend == "") {
		return cart.LineItemRef{}, errors.New("exactly one of --product or --blend is required")
	}
	if qty < 1 {
		return cart.LineItemRef{}, errors.New("--qty must be at least 1")
	}
	ref := cart.LineItemRef{Quantity: qty}
	raw := product
	if blend != "" {
		raw = blend
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return cart.LineItemRef{}, fmt.Errorf("invalid id %q", raw)
	}
	if product != "" {
		ref.ProductID = &id
	} else {
		ref.CustomBlendID = &id
	}
	return ref, nil
}

func (c *cli) cartList(ctx context.Context) error {
	lines, quote, err := c.app.CartView(ctx)
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		fmt.Fprintln(c.out, "your cart is empty")
		return nil
	}
	c.printLines(lines)
	subtotal, _, _ := quote.Display()
	fmt.Fprintf(c.out, "subtotal %s\n", subtotal)
	return nil
}

func (c *cli) printLines(lines []cart.PricedLineItem) {
	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LINE\tITEM\tQTY\tUNIT\tTOTAL")
	for _, line := range lines {
		name := line.Name
		if line.Missing {
			name += " (unavailable)"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", line.ID, name, line.Quantity, money.Format(line.UnitPrice), money.Format(line.LineTotal()))
	}
	_ = w.Flush()
}

func (c *cli) checkout(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("checkout", flag.ContinueOnError)
	address := fs.String("address", "", "street address")
	city := fs.String("city", "", "city")
	state := fs.String("state", "", "state")
	zip := fs.String("zip", "", "zip code")
	rate := fs.String("rate", "", "shipping rate id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	req := checkout.Request{
		ShippingAddress: types.ShippingAddress{Address: *address, City: *city, State: *state, Zip: *zip},
		OriginURL:       c.cfg.ReturnOrigin,
	}
	if strings.TrimSpace(*rate) != "" {
		id, err := uuid.Parse(strings.TrimSpace(*rate))
		if err != nil {
			return fmt.Errorf("invalid rate id %q", *rate)
		}
		req.ShippingRateID = &id
	}

	snap, err := c.app.Checkout.Begin(ctx, req)
	if err != nil {
		return err
	}
	c.printLines(snap.Lines)
	subtotal, shipping, total := snap.Quote.Display()
	fmt.Fprintf(c.out, "subtotal %s  shipping %s  total %s\n", subtotal, shipping, total)
	if snap.State == checkout.StateSucceeded {
		fmt.Fprintf(c.out, "order %s is already paid\n", snap.OrderID)
		return nil
	}
	fmt.Fprintf(c.out, "order %s created\npay here: %s\nthen run: storefront verify --session %s\n", snap.OrderID, snap.RedirectURL, snap.SessionID)
	return nil
}

func (c *cli) verify(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	session := fs.String("session", "", "checkout session id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "verifying payment...")
	snap, err := c.app.Checkout.Resume(ctx, *session)
	switch snap.State {
	case checkout.StateSucceeded:
		fmt.Fprintln(c.out, "payment confirmed, thank you for your order")
		return nil
	case checkout.StateTimedOut:
		fmt.Fprintf(c.out, "payment not confirmed yet after %d checks; run verify again later\n", snap.Attempts)
		return nil
	}
	if err != nil {
		return err
	}
	if snap.Err != nil {
		return snap.Err
	}
	fmt.Fprintf(c.out, "checkout is %s\n", snap.State)
	return nil
}

func exit(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
