package ccbatch

import (
	"bytes"
	"fmt"
	"text/template"
)

// GenerateScript renders the payment automation script with the parsed
// records embedded as its data array. The script targets the legacy Edge
// browser the receivables system still requires, so it sticks to ES5.
func GenerateScript(records []Record) (string, error) {
	if len(records) == 0 {
		return "", ErrNoRecords
	}
	var buf bytes.Buffer
	if err := scriptTemplate.Execute(&buf, map[string]any{
		"Records": records,
		"Count":   len(records),
	}); err != nil {
		return "", fmt.Errorf("render automation script: %w", err)
	}
	return buf.String(), nil
}

var scriptTemplate = template.Must(template.New("ccbatch").Parse(`// HEADLESS PAYMENT AUTOMATION
// Generated for {{.Count}} payment records
// Run the script once per step; it resumes from the page it lands on.

var PAYMENT_DATA = [
{{- range .Records}}
    {
        invoiceNumber: {{printf "%q" .InvoiceNumber}},
        cardPaymentMethod: {{printf "%q" .CardPaymentMethod}},
        settlementAmount: {{printf "%q" .SettlementAmount}},
        customer: {{printf "%q" .Customer}}
    },
{{- end}}
];

function detectPageAndStep() {
    var url = window.location.href.toLowerCase();
    var bodyText = document.body.textContent || document.body.innerText || '';

    if (url.indexOf('receipt_add_invoice.aspx') !== -1) {
        var amountField = document.getElementsByName('ctl00$ContentPlaceHolder1$txtAmount')[0];
        var customerField = document.getElementsByName('ctl00$ContentPlaceHolder1$txtCheckName')[0];
        if (customerField && customerField.value && customerField.value.trim() !== '') {
            return { page: 'PAYMENT_FORM_PAGE', step: 5 };
        } else if (amountField && amountField.value && amountField.value.trim() !== '') {
            return { page: 'PAYMENT_FORM_PAGE', step: 4 };
        }
        return { page: 'PAYMENT_FORM_PAGE', step: 3 };
    } else if (url.indexOf('batch_page.aspx') !== -1) {
        if (url.indexOf('view=recadd') !== -1) {
            return { page: 'ADD_RECEIPT_PAGE', step: 1 };
        } else if (url.indexOf('view=isrch') !== -1) {
            return { page: 'SEARCH_PAGE', step: 2 };
        } else if (bodyText.indexOf('Add Receipt') !== -1) {
            return { page: 'MAIN_BATCH_PAGE', step: 0 };
        }
    }
    return { page: 'UNKNOWN_PAGE', step: 0 };
}

function Automation() {
    var pageInfo = detectPageAndStep();
    this.step = pageInfo.step;
    this.page = pageInfo.page;

    var cookieIndex = this.getCookie('automationIndex');
    this.index = cookieIndex !== null ? parseInt(cookieIndex, 10) : 0;
    this.record = PAYMENT_DATA[this.index];

    console.log('Page: ' + this.page);
    console.log('Record: ' + (this.index + 1) + '/' + PAYMENT_DATA.length);
    if (this.record) {
        console.log('Processing: ' + this.record.invoiceNumber + ' - ' + this.record.customer);
    }
}

Automation.prototype.execute = function () {
    if (!this.record) {
        console.log('ALL RECORDS COMPLETED');
        return;
    }
    var self = this;
    switch (this.step) {
    case 0:
        this.clickButton('Add Receipt');
        break;
    case 1:
        this.clickButton('By Invoice');
        break;
    case 2:
        if (this.fillField('ctl00$ContentPlaceHolder1$txtNumber', this.cleanInvoice(this.record.invoiceNumber))) {
            setTimeout(function () { self.clickButton('Search'); }, 1200);
        }
        break;
    case 3:
        this.fillPaymentForm();
        break;
    case 4:
    case 5:
        this.completeForm();
        break;
    default:
        console.log('Unknown step: ' + this.step);
    }
};

Automation.prototype.fillPaymentForm = function () {
    var self = this;
    this.selectDropdown('ctl00$ContentPlaceHolder1$lstType', this.paymentType(this.record.cardPaymentMethod));
    setTimeout(function () {
        self.fillField('ctl00$ContentPlaceHolder1$txtNumber', self.record.cardPaymentMethod);
        setTimeout(function () {
            self.fillField('ctl00$ContentPlaceHolder1$txtAmount', self.record.settlementAmount);
            setTimeout(function () {
                self.fillField('ctl00$ContentPlaceHolder1$txtCheckName', self.record.customer);
                setTimeout(function () { self.save(); }, 1200);
            }, 800);
        }, 800);
    }, 800);
};

Automation.prototype.completeForm = function () {
    var self = this;
    var amountField = document.getElementsByName('ctl00$ContentPlaceHolder1$txtAmount')[0];
    var customerField = document.getElementsByName('ctl00$ContentPlaceHolder1$txtCheckName')[0];
    if (amountField && !amountField.value) {
        this.fillField('ctl00$ContentPlaceHolder1$txtAmount', this.record.settlementAmount);
    }
    setTimeout(function () {
        if (customerField && !customerField.value) {
            self.fillField('ctl00$ContentPlaceHolder1$txtCheckName', self.record.customer);
        }
        setTimeout(function () { self.save(); }, 1200);
    }, 800);
};

Automation.prototype.save = function () {
    var self = this;
    if (this.clickButton('Save')) {
        setTimeout(function () { self.nextRecord(); }, 2000);
    }
};

Automation.prototype.nextRecord = function () {
    this.index++;
    this.setCookie('automationIndex', this.index.toString());
    if (this.index < PAYMENT_DATA.length) {
        this.record = PAYMENT_DATA[this.index];
        console.log('Next record: ' + this.record.invoiceNumber);
    } else {
        this.record = null;
        console.log('ALL RECORDS COMPLETED');
    }
};

Automation.prototype.fillField = function (name, value) {
    var field = document.getElementsByName(name)[0];
    if (!field) {
        console.log('Field "' + name + '" not found');
        return false;
    }
    field.value = value;
    if (field.fireEvent) {
        field.fireEvent('onchange');
    } else {
        var event = document.createEvent('HTMLEvents');
        event.initEvent('change', true, true);
        field.dispatchEvent(event);
    }
    return true;
};

Automation.prototype.selectDropdown = function (name, value) {
    var dropdown = document.getElementsByName(name)[0];
    if (!dropdown) {
        console.log('Dropdown "' + name + '" not found');
        return false;
    }
    for (var i = 0; i < dropdown.options.length; i++) {
        if (dropdown.options[i].text.indexOf(value) !== -1) {
            dropdown.selectedIndex = i;
            dropdown.value = dropdown.options[i].value;
            return true;
        }
    }
    console.log('Option "' + value + '" not found');
    return false;
};

Automation.prototype.clickButton = function (text) {
    var buttons = document.getElementsByTagName('input');
    for (var i = 0; i < buttons.length; i++) {
        if (buttons[i].value === text &&
            (buttons[i].type === 'submit' || buttons[i].type === 'button')) {
            buttons[i].click();
            return true;
        }
    }
    console.log('Button "' + text + '" not found');
    return false;
};

Automation.prototype.cleanInvoice = function (invoice) {
    return invoice.replace(/^[RP]/i, '');
};

Automation.prototype.paymentType = function (method) {
    var upper = method.toUpperCase();
    if (upper.indexOf('AMEX') !== -1) return 'AMEX';
    if (upper.indexOf('VISA') !== -1) return 'VISA';
    if (upper.indexOf('MC') !== -1) return 'MasterCard';
    if (upper.indexOf('DISC') !== -1) return 'Discover';
    return 'Check';
};

Automation.prototype.setCookie = function (name, value) {
    document.cookie = name + '=' + value + '; path=/';
};

Automation.prototype.getCookie = function (name) {
    var cookies = document.cookie.split(';');
    for (var i = 0; i < cookies.length; i++) {
        var cookie = cookies[i].trim();
        if (cookie.indexOf(name + '=') === 0) {
            return cookie.substring(name.length + 1);
        }
    }
    return null;
};

var auto = new Automation();
auto.execute();

window.run = function () {
    auto = new Automation();
    auto.execute();
};

window.reset = function () {
    document.cookie = 'automationIndex=0; path=/';
    console.log('Reset to first record');
};
`))
