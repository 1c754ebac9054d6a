package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/jrsteele09/go-storefront/checkout"
	"github.com/jrsteele09/go-storefront/guard"
	apperrors "github.com/jrsteele09/go-storefront/internal/errors"
	"github.com/jrsteele09/go-storefront/products"
	"github.com/jrsteele09/go-storefront/storefront"
	"github.com/jrsteele09/go-storefront/users"
)

type command func(ctx context.Context, sf *storefront.Storefront, args []string) error

var commands = map[string]command{
	"login":      login,
	"register":   register,
	"profile":    profile,
	"logout":     logout,
	"logout-all": logoutAll,
	"guard":      checkGuard,
	"products":   listProducts,
	"product":    showProduct,
	"cart":       showCart,
	"add":        addItem,
	"update":     updateItem,
	"remove":     removeItem,
	"clear":      clearCart,
	"checkout":   submitCheckout,
	"orders":     listOrders,
	"order":      showOrder,
}

func login(ctx context.Context, sf *storefront.Storefront, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	var creds users.Credentials
	fs.StringVar(&creds.Email, "email", os.Getenv("STOREFRONT_EMAIL"), "account email")
	fs.StringVar(&creds.Password, "password", os.Getenv("STOREFRONT_PASSWORD"), "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	user, err := sf.Session.Login(ctx, creds)
	if err != nil {
		return err
	}
	fmt.Printf("Welcome back, %s\n", user.FullName())
	return nil
}

func register(ctx context.Context, sf *storefront.Storefront, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	var data users.RegisterData
	fs.StringVar(&data.FirstName, "nombre", "", "first name")
	fs.StringVar(&data.LastName, "apellido", "", "last name")
	fs.StringVar(&data.Email, "email", "", "email")
	fs.StringVar(&data.Password, "password", "", "password, at least 6 characters")
	fs.StringVar(&data.Phone, "telefono", "", "phone number")
	fs.StringVar(&data.Address, "direccion", "", "shipping address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	user, err := sf.Session.Register(ctx, data)
	if err != nil {
		return err
	}
	fmt.Printf("Account created for %s\n", user.Email)
	return nil
}

func profile(ctx context.Context, sf *storefront.Storefront, _ []string) error {
	user, err := sf.Session.Profile(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Name\t%s\n", user.FullName())
	fmt.Fprintf(w, "Email\t%s\n", user.Email)
	fmt.Fprintf(w, "Phone\t%s\n", user.Phone)
	fmt.Fprintf(w, "Address\t%s\n", user.Address)
	return w.Flush()
}

func logout(ctx context.Context, sf *storefront.Storefront, _ []string) error {
	sf.Session.Logout(ctx)
	fmt.Println("Logged out")
	return nil
}

func logoutAll(ctx context.Context, sf *storefront.Storefront, _ []string) error {
	sf.Session.LogoutAll(ctx)
	fmt.Println("Logged out of every session")
	return nil
}

func checkGuard(ctx context.Context, sf *storefront.Storefront, _ []string) error {
	state := sf.Guard.Check(ctx)
	fmt.Println(state)
	if state != guard.Authorized {
		return apperrors.ErrNotAuthenticated
	}
	return nil
}

func listProducts(ctx context.Context, sf *storefront.Storefront, args []string) error {
	fs := flag.NewFlagSet("products", flag.ContinueOnError)
	var params products.ListParams
	fs.StringVar(&params.Search, "search", "", "text to search for")
	fs.StringVar(&params.Category, "categoria", "", "category id")
	fs.IntVar(&params.Page, "page", 1, "page number")
	fs.IntVar(&params.Limit, "limit", 20, "page size")
	if err := fs.Parse(args); err != nil {
		return err
	}

	list, err := sf.Products.List(ctx, params)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPRICE\tSTOCK")
	for _, p := range list {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", p.ID, p.Name, p.Price.StringFixed(2), p.Stock)
	}
	return w.Flush()
}

func showProduct(ctx context.Context, sf *storefront.Storefront, args []string) error {
	id, err := intArg(args, 0, "product id")
	if err != nil {
		return err
	}
	p, err := sf.Products.Get(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("%s (#%d)\n%s\nPrice: %s  Stock: %d  Category: %s\n", p.Name, p.ID, p.Description, p.Price.StringFixed(2), p.Stock, p.Category.Name)
	return nil
}

func showCart(ctx context.Context, sf *storefront.Storefront, _ []string) error {
	c, err := sf.Cart.FetchCart(ctx)
	if err != nil {
		return err
	}
	if c.Empty() {
		fmt.Println("Your cart is empty")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ITEM\tPRODUCT\tQTY\tPRICE\tSUBTOTAL")
	for _, item := range c.Items {
		name := strconv.Itoa(item.ProductID)
		if item.Product != nil {
			name = item.Product.Name
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n", item.ID, name, item.Quantity, item.Price().StringFixed(2), item.Subtotal().StringFixed(2))
	}
	fmt.Fprintf(w, "\t\t\tTOTAL\t%s\n", c.Total().StringFixed(2))
	return w.Flush()
}

func addItem(ctx context.Context, sf *storefront.Storefront, args []string) error {
	productID, err := intArg(args, 0, "product id")
	if err != nil {
		return err
	}
	quantity := 1
	if len(args) > 1 {
		if quantity, err = intArg(args, 1, "quantity"); err != nil {
			return err
		}
	}
	if err := sf.Cart.AddItem(ctx, productID, quantity); err != nil {
		return err
	}
	return showCart(ctx, sf, nil)
}

func updateItem(ctx context.Context, sf *storefront.Storefront, args []string) error {
	itemID, err := intArg(args, 0, "item id")
	if err != nil {
		return err
	}
	quantity, err := intArg(args, 1, "quantity")
	if err != nil {
		return err
	}
	if err := sf.Cart.UpdateItemQuantity(ctx, itemID, quantity); err != nil {
		return err
	}
	return showCart(ctx, sf, nil)
}

func removeItem(ctx context.Context, sf *storefront.Storefront, args []string) error {
	itemID, err := intArg(args, 0, "item id")
	if err != nil {
		return err
	}
	if err := sf.Cart.RemoveItem(ctx, itemID); err != nil {
		return err
	}
	return showCart(ctx, sf, nil)
}

func clearCart(ctx context.Context, sf *storefront.Storefront, _ []string) error {
	if err := sf.Cart.ClearCart(ctx); err != nil {
		return err
	}
	fmt.Println("Cart cleared")
	return nil
}

func submitCheckout(ctx context.Context, sf *storefront.Storefront, args []string) error {
	fs := flag.NewFlagSet("checkout", flag.ContinueOnError)
	var payment checkout.PaymentDetails
	fs.StringVar(&payment.CardNumber, "card", "", "card number")
	fs.StringVar(&payment.CardHolder, "holder", "", "name on the card")
	fs.StringVar(&payment.Expiry, "expiry", "", "expiry as MM/YY")
	fs.StringVar(&payment.CVV, "cvv", "", "security code")
	address := fs.String("address", "", "shipping address, defaults to the profile address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *address == "" {
		if user := sf.Session.User(); user != nil {
			*address = user.Address
		} else if user, err := sf.Session.Profile(ctx); err == nil {
			*address = user.Address
		}
	}

	order, err := sf.Checkout.Submit(ctx, payment, *address)
	if err != nil {
		return err
	}
	fmt.Printf("Order %s placed: %s, total %s\n", order.Number, order.Status, order.Total.StringFixed(2))
	return nil
}

func listOrders(ctx context.Context, sf *storefront.Storefront, _ []string) error {
	list, err := sf.Orders.List(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println("No orders yet")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNUMBER\tDATE\tSTATUS\tTOTAL")
	for _, o := range list {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", o.ID, o.Number, o.PlacedAt, o.Status, o.Total.StringFixed(2))
	}
	return w.Flush()
}

func showOrder(ctx context.Context, sf *storefront.Storefront, args []string) error {
	id, err := intArg(args, 0, "order id")
	if err != nil {
		return err
	}
	o, err := sf.Orders.Get(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("Order %s (%s) placed %s\nShip to: %s\nPaid with: %s\n\n", o.Number, o.Status, o.PlacedAt, o.ShippingAddress, o.PaymentMethod)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRODUCT\tQTY\tPRICE\tSUBTOTAL")
	for _, l := range o.Lines {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", l.Name(), l.Quantity, l.UnitPrice.StringFixed(2), l.Subtotal.StringFixed(2))
	}
	fmt.Fprintf(w, "\t\tTOTAL\t%s\n", o.Total.StringFixed(2))
	return w.Flush()
}

func intArg(args []string, i int, name string) (int, error) {
	if i >= len(args) {
		return 0, apperrors.NewValidationError(name, "is required")
	}
	v, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, apperrors.NewValidationError(name, "must be a number")
	}
	return v, nil
}
